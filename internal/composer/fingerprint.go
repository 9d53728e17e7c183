package composer

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
	"strconv"

	"github.com/aretw0/operad/pkg/domain"
)

// Fingerprint hashes the executable content of a kernel: identity fields,
// graph, flattened logic and control metadata. Free-form metadata is excluded.
// Every field is length-prefixed so adjacent fields cannot alias.
func Fingerprint(ko *domain.KernelObject) string {
	w := fieldWriter{h: sha256.New()}

	w.str(ko.ID)
	w.str(ko.ClauseID)
	w.str(ko.Type)
	w.str(ko.Role)
	w.list(ko.Inputs)
	w.list(ko.Yields)

	w.count(len(ko.Nodes))
	for _, n := range ko.Nodes {
		w.str(n.ID)
		w.str(n.Clause.Raw)
		w.str(n.Clause.Condition.String())
		w.str(n.Clause.Action.String())
		w.list(n.Dependencies)
		w.list(n.Inputs)
		w.list(n.Outputs)
	}

	logic := Flatten(ko.Nodes)
	for i := range logic.Conditions {
		w.str(logic.Conditions[i].String())
		w.str(logic.Actions[i].String())
	}

	if l := ko.Loop; l != nil {
		w.str("loop")
		w.str(strconv.Itoa(l.Bounds))
		w.str(strconv.FormatFloat(l.EntropyCap, 'g', -1, 64))
		w.str(strconv.Itoa(l.RetryLimit))
		w.list(l.ExitConditions)
	}
	if r := ko.Reflex; r != nil {
		w.str("reflex")
		events := make([]string, 0, len(r.TriggerMap))
		for ev := range r.TriggerMap {
			events = append(events, ev)
		}
		sort.Strings(events)
		w.count(len(events))
		for _, ev := range events {
			w.str(ev)
			w.str(r.TriggerMap[ev])
		}
		ids := make([]string, 0, len(r.Clauses))
		for id := range r.Clauses {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		w.count(len(ids))
		for _, id := range ids {
			c := r.Clauses[id]
			w.str(id)
			w.str(c.ID)
			w.str(c.Text)
			w.str(string(c.Mode))
			w.list(c.Outputs)
		}
	}
	if c := ko.Composition; c != nil {
		w.str("composition")
		w.list(c.Required)
		w.list(c.Lineage)
	}
	if len(ko.Schema) > 0 {
		w.str("schema")
		keys := make([]string, 0, len(ko.Schema))
		for k := range ko.Schema {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		w.count(len(keys))
		for _, k := range keys {
			w.str(k)
			w.str(ko.Schema[k])
		}
	}

	return hex.EncodeToString(w.h.Sum(nil))
}

type fieldWriter struct {
	h hash.Hash
}

func (w fieldWriter) count(n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	w.h.Write(buf[:])
}

func (w fieldWriter) str(s string) {
	w.count(len(s))
	w.h.Write([]byte(s))
}

func (w fieldWriter) list(items []string) {
	w.count(len(items))
	for _, s := range items {
		w.str(s)
	}
}
