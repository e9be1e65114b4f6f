package indexdb

import (
	"time"

	"viceroy.ai/internal/persistence/snapshot"
	"viceroy.ai/internal/sim/action"
	"viceroy.ai/internal/sim/catalogs"
	"viceroy.ai/internal/sim/ministry"
	"viceroy.ai/internal/sim/tuning"
)

// remoteEvent is the envelope shared by the HTTP and redis backends.
type remoteEvent struct {
	Kind      string `json:"kind"`
	SessionID string `json:"session_id"`
	Payload   any    `json:"payload"`
}

type remoteActionPayload struct {
	ActionID    string        `json:"action_id"`
	Round       int           `json:"round"`
	Kind        string        `json:"kind"`
	UnitID      string        `json:"unit_id"`
	ReportedRaw int           `json:"reported_raw"`
	TrueRaw     int           `json:"true_raw"`
	Diverted    int           `json:"diverted,omitempty"`
	MinisterID  string        `json:"minister_id,omitempty"`
	Raw         action.Record `json:"raw"`
}

type remoteCatalogPayload struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	JSON      string `json:"json"`
	UpdatedAt string `json:"updated_at"`
}

type remoteSnapshotPayload struct {
	Turn     int    `json:"turn"`
	Path     string `json:"path"`
	Treasury int    `json:"treasury"`
	Diverted int    `json:"diverted_total"`
}

func actionEvent(sessionID string, r action.Record) remoteEvent {
	return remoteEvent{Kind: "action", SessionID: sessionID, Payload: remoteActionPayload{
		ActionID:    r.ActionID,
		Round:       r.Round,
		Kind:        string(r.Kind),
		UnitID:      r.UnitID,
		ReportedRaw: r.Reported.Raw,
		TrueRaw:     r.True.Raw,
		Diverted:    r.Diverted,
		MinisterID:  r.MinisterID,
		Raw:         r,
	}}
}

func diversionEvent(sessionID string, d ministry.Diversion) remoteEvent {
	return remoteEvent{Kind: "diversion", SessionID: sessionID, Payload: d}
}

func snapshotEvent(sessionID, path string, snap snapshot.ColonyV1) remoteEvent {
	row := snapshotRowOf(path, snap)
	return remoteEvent{Kind: "snapshot", SessionID: sessionID, Payload: remoteSnapshotPayload{
		Turn:     row.turn,
		Path:     row.path,
		Treasury: row.treasury,
		Diverted: row.diverted,
	}}
}

func catalogEvents(sessionID, configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) ([]remoteEvent, error) {
	rows, err := catalogRows(configDir, cats, tune)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	out := make([]remoteEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, remoteEvent{Kind: "catalog", SessionID: sessionID, Payload: remoteCatalogPayload{
			Name:      r.name,
			Digest:    r.digest,
			JSON:      string(r.data),
			UpdatedAt: now,
		}})
	}
	return out, nil
}
