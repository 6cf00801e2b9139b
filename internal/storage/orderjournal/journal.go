// Package orderjournal is a write-ahead log of order sequencer transitions.
// The last entry of each sequence tells whether an order may have been left
// on the exchange without a recorded outcome.
package orderjournal

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/hlpilot/internal/domain"
)

const keyPrefix = "seq_"

// Entry is one sequencer transition.
type Entry struct {
	SequenceID string                `json:"sequence_id"`
	Action     domain.Action         `json:"action"`
	Coin       string                `json:"coin,omitempty"`
	State      domain.SequencerState `json:"state"`
	OrderID    int64                 `json:"order_id,omitempty"`
	Error      string                `json:"error,omitempty"`
	Time       time.Time             `json:"time"`
}

// Journal appends entries to a gowal log and keeps the latest entry per sequence.
type Journal struct {
	mu   sync.Mutex
	wal  *gowal.Wal
	last map[string]Entry
}

// Open opens (or creates) the journal in dir and replays it.
func Open(dir string) (*Journal, error) {
	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "seq_",
		SegmentThreshold: 1000,
		MaxSegments:      100,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init order journal")
	}

	j := &Journal{wal: wal, last: make(map[string]Entry)}
	n := 0
	for msg := range wal.Iterator() {
		n++
		if !strings.HasPrefix(msg.Key, keyPrefix) {
			continue
		}
		var e Entry
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			_ = wal.Close()
			return nil, errors.Wrapf(err, "decode journal entry %d", n)
		}
		j.last[e.SequenceID] = e
	}
	return j, nil
}

// Record appends e. A zero Time is set to now.
func (j *Journal) Record(e Entry) error {
	if e.SequenceID == "" {
		return errors.New("journal entry without sequence id")
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal journal entry")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.wal.Write(j.wal.CurrentIndex()+1, keyPrefix+e.SequenceID, data); err != nil {
		return errors.Wrap(err, "write journal entry")
	}
	j.last[e.SequenceID] = e
	return nil
}

// Last returns the latest entry of a sequence.
func (j *Journal) Last(sequenceID string) (Entry, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, ok := j.last[sequenceID]
	return e, ok
}

// InFlight returns sequences that stopped right after submitting an order, oldest first.
func (j *Journal) InFlight() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []Entry
	for _, e := range j.last {
		if e.State.InFlight() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Time.Before(out[b].Time) })
	return out
}

func (j *Journal) Close() error {
	return j.wal.Close()
}
