package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitals-triage-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "vitals.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleEntry(patientID string, ts time.Time) *domain.Entry {
	alcohol := 1.0
	return &domain.Entry{
		PatientID:     patientID,
		Timestamp:     ts,
		BP:            &domain.BloodPressure{Sys: 150, Dia: 85},
		Glucose:       &domain.Glucose{Mmol: 6.1, Context: domain.GlucoseFasting},
		Food:          &domain.Food{Salt: 4, Carb: 2, Notes: "soup"},
		Alcohol:       &alcohol,
		Notes:         "felt dizzy",
		CreatedByRole: domain.RolePatient,
		Status:        domain.StatusYellow,
		StatusReasons: []domain.ReasonCode{domain.ReasonBPSysHigh},
		RiskScore:     23,
		Actions:       []domain.ActionCode{domain.ActionMonitorBP, domain.ActionReduceSaltImmediately},
	}
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "vitals.db")

	store, err := NewSQLiteStore(dbPath, testLogger())
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
	assert.Equal(t, dbPath, store.Path())
}

func TestSQLiteStore_Profiles(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	_, err := store.GetProfile(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	custom := domain.DefaultThresholds
	custom.BPSysHigh = 130
	year := 1961
	profile := &domain.PatientProfile{
		PatientID:   "p1",
		DisplayName: "Ada",
		YearOfBirth: &year,
		Conditions:  domain.Conditions{domain.ConditionHypertension},
		Thresholds:  &custom,
	}
	require.NoError(t, store.UpsertProfile(ctx, profile))
	assert.False(t, profile.CreatedAt.IsZero())

	got, err := store.GetProfile(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.DisplayName)
	assert.Equal(t, domain.Conditions{domain.ConditionHypertension}, got.Conditions)
	require.NotNil(t, got.Thresholds)
	assert.Equal(t, custom, *got.Thresholds)
	require.NotNil(t, got.YearOfBirth)
	assert.Equal(t, 1961, *got.YearOfBirth)

	createdAt := got.CreatedAt
	profile.Thresholds = nil
	profile.Conditions = nil
	require.NoError(t, store.UpsertProfile(ctx, profile))

	got, err = store.GetProfile(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got.Thresholds)
	assert.Empty(t, got.Conditions)
	assert.Equal(t, createdAt, got.CreatedAt, "CreatedAt is preserved on update")
}

func TestSQLiteStore_SaveAndGetEntry(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	ts := time.Date(2024, 6, 1, 7, 30, 0, 0, time.UTC)
	entry := sampleEntry("p1", ts)

	require.NoError(t, store.SaveEntry(ctx, entry))
	assert.Equal(t, "1717227000000", entry.ID, "ID derives from timestamp millis")
	assert.False(t, entry.CreatedAt.IsZero())

	got, err := store.GetEntry(ctx, "p1", entry.ID)
	require.NoError(t, err)
	assert.Equal(t, ts, got.Timestamp)
	assert.Equal(t, entry.BP, got.BP)
	assert.Equal(t, entry.Glucose, got.Glucose)
	assert.Equal(t, entry.Food, got.Food)
	assert.Equal(t, 1.0, *got.Alcohol)
	assert.Nil(t, got.Meds)
	assert.Nil(t, got.Exercise)
	assert.Equal(t, domain.StatusYellow, got.Status)
	assert.Equal(t, entry.Actions, got.Actions)
	assert.Equal(t, 23, got.RiskScore)

	_, err = store.GetEntry(ctx, "p2", entry.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_SaveEntry_MergeKeepsTimestamp(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	ts := time.Date(2024, 6, 1, 7, 30, 0, 0, time.UTC)
	entry := sampleEntry("p1", ts)
	entry.ID = "morning"
	require.NoError(t, store.SaveEntry(ctx, entry))

	update := sampleEntry("p1", ts.Add(time.Hour))
	update.ID = "morning"
	update.Notes = "corrected"
	update.RiskScore = 40
	require.NoError(t, store.SaveEntry(ctx, update))
	assert.Equal(t, ts, update.Timestamp, "timestamp is immutable once persisted")

	got, err := store.GetEntry(ctx, "p1", "morning")
	require.NoError(t, err)
	assert.Equal(t, "corrected", got.Notes)
	assert.Equal(t, 40, got.RiskScore)
	assert.Equal(t, ts, got.Timestamp)
}

func TestSQLiteStore_ListEntries(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveEntry(ctx, sampleEntry("p1", base.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, store.SaveEntry(ctx, sampleEntry("p2", base)))

	page, err := store.ListEntries(ctx, "p1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, base.Add(4*time.Hour), page[0].Timestamp, "newest first")
	assert.Equal(t, base.Add(3*time.Hour), page[1].Timestamp)

	page, err = store.ListEntries(ctx, "p1", 10, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, base, page[0].Timestamp)

	inRange, err := store.ListEntriesInRange(ctx, "p1", base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, inRange, 3, "range bounds are inclusive")
	assert.Equal(t, base.Add(3*time.Hour), inRange[0].Timestamp)
	assert.Equal(t, base.Add(time.Hour), inRange[2].Timestamp)

	empty, err := store.ListEntries(ctx, "nobody", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLiteStore_DeleteEntry(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	entry := sampleEntry("p1", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.SaveEntry(ctx, entry))

	require.NoError(t, store.DeleteEntry(ctx, "p1", entry.ID))
	assert.ErrorIs(t, store.DeleteEntry(ctx, "p1", entry.ID), domain.ErrNotFound)

	_, err := store.GetEntry(ctx, "p1", entry.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_DatabaseErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := newSQLiteStore(db, testLogger())
	ctx := context.Background()
	boom := errors.New("disk I/O error")

	t.Run("get profile", func(t *testing.T) {
		mock.ExpectQuery("SELECT patient_id, display_name").WithArgs("p1").WillReturnError(boom)

		_, err := store.GetProfile(ctx, "p1")
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("save entry", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO entries").WillReturnError(boom)

		err := store.SaveEntry(ctx, sampleEntry("p1", time.Now()))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("list entries", func(t *testing.T) {
		mock.ExpectQuery("SELECT patient_id, id, recorded_at_ms").WithArgs("p1", 50, 0).WillReturnError(boom)

		_, err := store.ListEntries(ctx, "p1", 0, -3)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("corrupt payload", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"patient_id", "id", "recorded_at_ms", "payload", "created_at_ms", "updated_at_ms"}).
			AddRow("p1", "1", int64(0), "{not json", int64(0), int64(0))
		mock.ExpectQuery("SELECT patient_id, id, recorded_at_ms").WithArgs("p1", "1").WillReturnRows(rows)

		_, err := store.GetEntry(ctx, "p1", "1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decoding entry payload")
	})

	t.Run("delete reports rows affected errors", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM entries").WithArgs("p1", "1").
			WillReturnResult(sqlmock.NewErrorResult(boom))

		err := store.DeleteEntry(ctx, "p1", "1")
		assert.ErrorIs(t, err, boom)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
