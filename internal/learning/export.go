package learning

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

var csvHeader = []string{
	"interaction", "timestamp", "tenant_id", "position_id", "candidate_id",
	"arm", "reward", "is_optimal", "feedback_type",
	"precision", "recall", "f1", "response_rate", "average_reward", "cumulative_regret",
}

// WriteJSON writes interactions as a JSON array, one object per
// interaction with its metric snapshot inline. A nil slice writes [].
func WriteJSON(w io.Writer, history []Interaction) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if history == nil {
		history = []Interaction{}
	}
	if err := enc.Encode(history); err != nil {
		return fmt.Errorf("learning export: encode json: %w", err)
	}
	return nil
}

// WriteCSV writes interactions as flat rows, one per interaction, with
// the metric snapshot spread across trailing columns.
func WriteCSV(w io.Writer, history []Interaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("learning export: write header: %w", err)
	}
	for _, in := range history {
		row := []string{
			strconv.Itoa(in.Seq),
			in.Timestamp.UTC().Format(time.RFC3339Nano),
			in.TenantID,
			in.PositionID,
			in.CandidateID,
			strconv.Itoa(in.Arm),
			formatFloat(in.Reward),
			strconv.FormatBool(in.IsOptimal),
			string(in.FeedbackType),
			formatFloat(in.Metrics.Precision),
			formatFloat(in.Metrics.Recall),
			formatFloat(in.Metrics.F1),
			formatFloat(in.Metrics.ResponseRate),
			formatFloat(in.Metrics.AverageReward),
			formatFloat(in.Metrics.CumulativeRegret),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("learning export: write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("learning export: flush: %w", err)
	}
	return nil
}

// ExportJSON writes the tracker's full history as a JSON array.
func (t *Tracker) ExportJSON(w io.Writer) error {
	return WriteJSON(w, t.History())
}

// ExportCSV writes the tracker's full history as flat CSV rows.
func (t *Tracker) ExportCSV(w io.Writer) error {
	return WriteCSV(w, t.History())
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
