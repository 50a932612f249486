package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/vitals-triage-server/internal/domain"
)

const (
	toolAssessEntry          = "assess_entry"
	toolRecordEntry          = "record_entry"
	toolListEntries          = "list_entries"
	toolGetDefaultThresholds = "get_default_thresholds"
)

var toolNames = []string{toolAssessEntry, toolRecordEntry, toolListEntries, toolGetDefaultThresholds}

// EntryInput is the wire shape of a health record in tool arguments.
type EntryInput struct {
	ID            string                `json:"id,omitempty" jsonschema:"entry id; derived from the timestamp when empty"`
	Timestamp     string                `json:"timestamp,omitempty" jsonschema:"RFC3339 time of the observation; defaults to now"`
	BP            *domain.BloodPressure `json:"bp,omitempty" jsonschema:"blood pressure in mmHg"`
	Glucose       *domain.Glucose       `json:"glucose,omitempty" jsonschema:"blood glucose in mmol/L with context fasting or random"`
	Meds          *domain.Medication    `json:"meds,omitempty"`
	Food          *domain.Food          `json:"food,omitempty" jsonschema:"salt and carb intake on a 1-5 scale"`
	Exercise      *domain.Exercise      `json:"exercise,omitempty"`
	Alcohol       *float64              `json:"alcohol,omitempty" jsonschema:"alcohol units"`
	Cigarettes    *float64              `json:"cigarettes,omitempty"`
	Herbs         []string              `json:"herbs,omitempty"`
	Notes         string                `json:"notes,omitempty"`
	CreatedByRole string                `json:"created_by_role,omitempty" jsonschema:"patient or provider"`
	CreatedBy     string                `json:"created_by,omitempty"`
}

func (in *EntryInput) toEntry(now time.Time) (*domain.Entry, error) {
	if in == nil {
		return nil, domain.NewValidationError("entry", "entry is required", nil)
	}

	ts := now.UTC()
	if in.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, in.Timestamp)
		if err != nil {
			return nil, domain.NewValidationError("timestamp", "must be an RFC3339 timestamp", in.Timestamp)
		}
		ts = parsed.UTC()
	}

	return &domain.Entry{
		ID:            in.ID,
		Timestamp:     ts,
		BP:            in.BP,
		Glucose:       in.Glucose,
		Meds:          in.Meds,
		Food:          in.Food,
		Exercise:      in.Exercise,
		Alcohol:       in.Alcohol,
		Cigarettes:    in.Cigarettes,
		Herbs:         in.Herbs,
		Notes:         in.Notes,
		CreatedByRole: domain.CreatorRole(in.CreatedByRole),
		CreatedBy:     in.CreatedBy,
	}, nil
}

// AssessEntryParams defines parameters for the assess_entry tool
type AssessEntryParams struct {
	Entry      *EntryInput        `json:"entry"`
	Thresholds *domain.Thresholds `json:"thresholds,omitempty" jsonschema:"personal thresholds; defaults apply when omitted"`
	Conditions []string           `json:"conditions,omitempty" jsonschema:"chronic conditions: hypertension, diabetes"`
}

// RecordEntryParams defines parameters for the record_entry tool
type RecordEntryParams struct {
	PatientID string      `json:"patient_id"`
	Entry     *EntryInput `json:"entry"`
}

// ListEntriesParams defines parameters for the list_entries tool
type ListEntriesParams struct {
	PatientID string `json:"patient_id"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
	From      string `json:"from,omitempty" jsonschema:"RFC3339 lower bound; requires to"`
	To        string `json:"to,omitempty" jsonschema:"RFC3339 upper bound; requires from"`
}

// ListEntriesResult is the structured output of list_entries
type ListEntriesResult struct {
	PatientID string          `json:"patient_id"`
	Entries   []*domain.Entry `json:"entries"`
	Count     int             `json:"count"`
}

// GetDefaultThresholdsParams takes no arguments.
type GetDefaultThresholdsParams struct{}

func (s *LiteServer) handleAssessEntry(ctx context.Context, req *mcp.CallToolRequest, params AssessEntryParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", toolAssessEntry).Info("Tool invoked")

	entry, err := params.Entry.toEntry(time.Now())
	if err != nil {
		return createErrorResult("Invalid entry", err), nil, nil
	}

	assessment, err := s.svc.Assess(entry, params.Thresholds, params.Conditions)
	if err != nil {
		return createErrorResult("Assessment failed", err), nil, nil
	}

	return textResult(fmt.Sprintf("Status %s, risk score %d, reasons [%s]",
		assessment.Status, assessment.RiskScore, joinReasons(assessment.Reasons)), assessment), assessment, nil
}

func (s *LiteServer) handleRecordEntry(ctx context.Context, req *mcp.CallToolRequest, params RecordEntryParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{
		"tool":       toolRecordEntry,
		"patient_id": params.PatientID,
	}).Info("Tool invoked")

	entry, err := params.Entry.toEntry(time.Now())
	if err != nil {
		return createErrorResult("Invalid entry", err), nil, nil
	}
	entry.PatientID = params.PatientID

	saved, err := s.svc.RecordEntry(ctx, entry)
	if err != nil {
		return createErrorResult("Recording failed", err), nil, nil
	}

	return textResult(fmt.Sprintf("Recorded entry %s for %s: status %s, risk score %d",
		saved.ID, saved.PatientID, saved.Status, saved.RiskScore), saved), saved, nil
}

func (s *LiteServer) handleListEntries(ctx context.Context, req *mcp.CallToolRequest, params ListEntriesParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{
		"tool":       toolListEntries,
		"patient_id": params.PatientID,
	}).Info("Tool invoked")

	if strings.TrimSpace(params.PatientID) == "" {
		return createErrorResult("Missing required parameter", fmt.Errorf("patient_id is required")), nil, nil
	}

	var (
		entries []*domain.Entry
		err     error
	)
	if params.From != "" || params.To != "" {
		from, perr := time.Parse(time.RFC3339, params.From)
		if perr != nil {
			return createErrorResult("Invalid parameter", fmt.Errorf("from must be RFC3339: %w", perr)), nil, nil
		}
		to, perr := time.Parse(time.RFC3339, params.To)
		if perr != nil {
			return createErrorResult("Invalid parameter", fmt.Errorf("to must be RFC3339: %w", perr)), nil, nil
		}
		entries, err = s.svc.ListEntriesInRange(ctx, params.PatientID, from, to)
	} else {
		entries, err = s.svc.ListEntries(ctx, params.PatientID, params.Limit, params.Offset)
	}
	if err != nil {
		return createErrorResult("Listing failed", err), nil, nil
	}

	result := ListEntriesResult{PatientID: params.PatientID, Entries: entries, Count: len(entries)}
	return textResult(fmt.Sprintf("%d entries for %s", result.Count, params.PatientID), result), result, nil
}

func (s *LiteServer) handleGetDefaultThresholds(ctx context.Context, req *mcp.CallToolRequest, params GetDefaultThresholdsParams) (*mcp.CallToolResult, any, error) {
	thresholds := s.svc.Engine().Defaults()
	return textResult("Default thresholds", thresholds), thresholds, nil
}

// textResult renders a one-line summary followed by the JSON payload.
func textResult(summary string, payload interface{}) *mcp.CallToolResult {
	text := summary
	if data, err := json.MarshalIndent(payload, "", "  "); err == nil {
		text += "\n" + string(data)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// createErrorResult creates a standardized error result for tool calls
func createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}

func joinReasons(reasons []domain.ReasonCode) string {
	out := make([]string, len(reasons))
	for i, r := range reasons {
		out[i] = string(r)
	}
	return strings.Join(out, ", ")
}
