package main

import (
	"fmt"
	"io"
	"sort"

	"viceroy.ai/internal/persistence/indexdb"
	"viceroy.ai/internal/sim/world"
)

// writeSessionMetrics renders the Prometheus text format.
func writeSessionMetrics(w io.Writer, sessionID string, m world.SessionMetrics) {
	fmt.Fprintf(w, "# HELP viceroy_turn Current turn.\n# TYPE viceroy_turn gauge\n")
	fmt.Fprintf(w, "viceroy_turn{session=%q} %d\n", sessionID, m.Turn)

	busy := 0
	if m.Busy {
		busy = 1
	}
	fmt.Fprintf(w, "# HELP viceroy_action_in_progress 1 while an action is being resolved.\n# TYPE viceroy_action_in_progress gauge\n")
	fmt.Fprintf(w, "viceroy_action_in_progress{session=%q} %d\n", sessionID, busy)

	fmt.Fprintf(w, "# HELP viceroy_clients Connected presentation clients.\n# TYPE viceroy_clients gauge\n")
	fmt.Fprintf(w, "viceroy_clients{session=%q} %d\n", sessionID, m.Clients)

	fmt.Fprintf(w, "# HELP viceroy_pending_messages Messages queued behind the one on screen.\n# TYPE viceroy_pending_messages gauge\n")
	fmt.Fprintf(w, "viceroy_pending_messages{session=%q} %d\n", sessionID, m.Pending)

	fmt.Fprintf(w, "# HELP viceroy_treasury Colony treasury.\n# TYPE viceroy_treasury gauge\n")
	fmt.Fprintf(w, "viceroy_treasury{session=%q} %d\n", sessionID, m.Treasury)

	fmt.Fprintf(w, "# HELP viceroy_debt Outstanding loan principal.\n# TYPE viceroy_debt gauge\n")
	fmt.Fprintf(w, "viceroy_debt{session=%q} %d\n", sessionID, m.Debt)

	fmt.Fprintf(w, "# HELP viceroy_units Units in the colony.\n# TYPE viceroy_units gauge\n")
	fmt.Fprintf(w, "viceroy_units{session=%q} %d\n", sessionID, m.Units)

	fmt.Fprintf(w, "# HELP viceroy_diverted_total Value diverted per minister.\n# TYPE viceroy_diverted_total counter\n")
	ids := make([]string, 0, len(m.Diverted))
	for id := range m.Diverted {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "viceroy_diverted_total{session=%q,minister=%q} %d\n", sessionID, id, m.Diverted[id])
	}

	fmt.Fprintf(w, "# HELP viceroy_queue_depth Channel backlog depth.\n# TYPE viceroy_queue_depth gauge\n")
	fmt.Fprintf(w, "viceroy_queue_depth{session=%q,queue=%q} %d\n", sessionID, "inbox", m.Inbox)
	fmt.Fprintf(w, "viceroy_queue_depth{session=%q,queue=%q} %d\n", sessionID, "snapshots", m.Snapshots)
}

func writeIndexMetrics(w io.Writer, idx runtimeIndex) {
	switch x := idx.(type) {
	case *indexdb.SQLiteIndex:
		s := x.Stats()
		gauge(w, "viceroy_index_queue_depth", "Index writer backlog.", s.QueueDepth)
		counter(w, "viceroy_index_drop_action_total", "Action records the index dropped.", s.DropActionTotal)
		counter(w, "viceroy_index_drop_diversion_total", "Diversions the index dropped.", s.DropDiversionTotal)
		counter(w, "viceroy_index_drop_snapshot_total", "Snapshot rows the index dropped.", s.DropSnapshotTotal)
	case *indexdb.RemoteIndex:
		s := x.Stats()
		counter(w, "viceroy_index_remote_dropped_total", "Events dropped before sending.", s.QueueDroppedTotal)
		counter(w, "viceroy_index_remote_flush_fail_total", "Failed batch posts.", s.FlushFailTotal)
		counter(w, "viceroy_index_remote_delivered_total", "Events delivered.", s.DeliveredTotal)
	case *indexdb.RedisIndex:
		s := x.Stats()
		counter(w, "viceroy_index_redis_dropped_total", "Events dropped on a full queue or a failed XADD.", s.QueueDroppedTotal)
		counter(w, "viceroy_index_redis_flush_fail_total", "Failed XADD pipelines.", s.FlushFailTotal)
		counter(w, "viceroy_index_redis_delivered_total", "Events appended to the stream.", s.DeliveredTotal)
	}
}
