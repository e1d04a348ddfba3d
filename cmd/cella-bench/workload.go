package main

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Bren2010/cella/accumulator"
	"github.com/Bren2010/cella/crypto"
	"github.com/Bren2010/cella/db"
	"github.com/Bren2010/cella/tree/archive"
	"github.com/Bren2010/cella/tree/mmr"
	"github.com/Bren2010/cella/tree/smt"
	"github.com/Bren2010/cella/tree/smtlive"
)

// liveCell is the bench's own record of an element it created and has not
// consumed yet, kept so proof samples can be checked independently of the
// accumulator.
type liveCell struct {
	op      accumulator.OutPoint
	created uint64
}

// workload drives one accumulator engine through a chain of synthetic
// blocks: every block creates fresh cells, consumes victims picked at random
// from earlier blocks, and seals a commitment. Database transactions are
// cycled every few blocks, reopening the engine from persisted state each
// time.
type workload struct {
	config *Config
	rng    *rand.Rand
	ldb    *db.LDB

	txn    db.Txn
	writer accumulator.Writer
	engine interface{}

	txCounter   uint64
	live        []liveCell
	commitments []accumulator.Commitment
}

func newWorkload(config *Config, ldb *db.LDB) (*workload, error) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(config.Seed))
	seed := crypto.Sum([]byte("seed"), n[:])

	w := &workload{
		config: config,
		rng:    rand.New(rand.NewChaCha8([32]byte(seed))),
		ldb:    ldb,
	}
	if err := w.openEngine(); err != nil {
		return nil, err
	}
	return w, nil
}

// openEngine starts a fresh database transaction and opens the configured
// engine over it.
func (w *workload) openEngine() error {
	txn, err := w.ldb.Begin()
	if err != nil {
		return err
	}
	w.txn = txn

	switch w.config.Engine {
	case "mmr":
		w.engine, err = mmr.New(txn)
	case "smt":
		w.engine, err = smt.New(txn)
	case "smt-live":
		w.engine, err = smtlive.New(txn)
	case "smt-archive":
		w.engine, err = archive.New(txn)
	default:
		err = fmt.Errorf("unknown engine: %v", w.config.Engine)
	}
	if err != nil {
		return err
	}
	w.writer = w.engine.(accumulator.Writer)
	return nil
}

// newTx mints the out-points of one synthetic transaction.
func (w *workload) newTx() []accumulator.OutPoint {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], w.txCounter)
	w.txCounter++
	txHash := crypto.Sum([]byte("tx"), n[:])

	out := make([]accumulator.OutPoint, w.config.OutputsPerTx)
	for i := range out {
		out[i] = accumulator.OutPoint{TxHash: txHash, Index: uint32(i)}
	}
	return out
}

// pickVictims removes random cells from the live set, at most the requested
// number.
func (w *workload) pickVictims(count int) []liveCell {
	if count > len(w.live) {
		count = len(w.live)
	}
	victims := make([]liveCell, 0, count)
	for len(victims) < count {
		i := w.rng.IntN(len(w.live))
		victims = append(victims, w.live[i])
		w.live[i] = w.live[len(w.live)-1]
		w.live = w.live[:len(w.live)-1]
	}
	return victims
}

// block builds and seals one block, returning its commitment.
func (w *workload) block(seq uint64) (accumulator.Commitment, error) {
	// Victims come from earlier blocks only, so they are picked before
	// this block's outputs join the live set.
	victims := w.pickVictims(w.config.TxsPerBlock * w.config.InputsPerTx)

	var adds []accumulator.OutPoint
	for i := 0; i < w.config.TxsPerBlock; i++ {
		adds = append(adds, w.newTx()...)
	}

	if err := w.writer.Add(adds); err != nil {
		return accumulator.Commitment{}, fmt.Errorf("adding %d elements: %w", len(adds), err)
	}
	opsTotal.WithLabelValues("add").Add(float64(len(adds)))

	if len(victims) > 0 {
		deletes := make([]accumulator.OutPoint, len(victims))
		for i, v := range victims {
			deletes[i] = v.op
		}
		if err := w.writer.Delete(deletes); err != nil {
			return accumulator.Commitment{}, fmt.Errorf("deleting %d elements: %w", len(deletes), err)
		}
		opsTotal.WithLabelValues("delete").Add(float64(len(deletes)))
	}

	c, err := w.writer.Commit()
	if err != nil {
		return accumulator.Commitment{}, fmt.Errorf("committing: %w", err)
	}
	opsTotal.WithLabelValues("commit").Inc()
	if c.Sequence != seq {
		return accumulator.Commitment{}, fmt.Errorf("committed sequence %d, expected %d", c.Sequence, seq)
	}

	for _, op := range adds {
		w.live = append(w.live, liveCell{op: op, created: seq})
	}
	liveCells.Set(float64(len(w.live)))
	return c, nil
}

// sample proves a few random live cells against the latest commitment and
// checks the proofs verify.
func (w *workload) sample(latest accumulator.Commitment) error {
	count := w.config.ProveCount
	if count > len(w.live) {
		count = len(w.live)
	}
	if count == 0 {
		return nil
	}

	// Pick distinct cells: the proof generators reject duplicate keys.
	picked := make(map[int]bool, count)
	cells := make([]liveCell, 0, count)
	for len(cells) < count {
		i := w.rng.IntN(len(w.live))
		if picked[i] {
			continue
		}
		picked[i] = true
		cells = append(cells, w.live[i])
	}
	ops := make([]accumulator.OutPoint, count)
	elements := make([]accumulator.Element, count)
	for i, cell := range cells {
		ops[i] = cell.op
		elements[i] = accumulator.Element{OutPoint: cell.op, Status: accumulator.NewLive(cell.created)}
	}

	start := time.Now()
	defer func() { proveDur.Observe(time.Since(start).Seconds()) }()

	// The live engine checks each element against the commitment of its
	// creation block; the single-tree engines check everything against the
	// latest one.
	if e, ok := w.engine.(*smtlive.Accumulator); ok {
		proof, err := e.Prove(latest, ops)
		if err != nil {
			return fmt.Errorf("proving %d elements: %w", count, err)
		}
		pairs := make([]smtlive.CommitmentPair, count)
		for i, cell := range cells {
			pairs[i] = smtlive.CommitmentPair{Create: w.commitments[cell.created]}
		}
		if ok, err := proof.Verify(pairs, elements); err != nil {
			return fmt.Errorf("verifying: %w", err)
		} else if !ok {
			return fmt.Errorf("proof of %d live elements did not verify", count)
		}
		return nil
	}

	reader := w.engine.(accumulator.Reader)
	proof, err := reader.Prove(latest, ops)
	if err != nil {
		return fmt.Errorf("proving %d elements: %w", count, err)
	}
	if ok, err := proof.Verify(latest, elements); err != nil {
		return fmt.Errorf("verifying: %w", err)
	} else if !ok {
		return fmt.Errorf("proof of %d live elements did not verify", count)
	}
	return nil
}

// run executes the full workload.
func (w *workload) run() error {
	for i := 0; i < w.config.Blocks; i++ {
		start := time.Now()

		c, err := w.block(uint64(i))
		if err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		w.commitments = append(w.commitments, c)
		blockDur.Observe(time.Since(start).Seconds())

		if w.config.ProveEvery > 0 && (i+1)%w.config.ProveEvery == 0 {
			if err := w.sample(c); err != nil {
				return fmt.Errorf("block %d: %w", i, err)
			}
		}

		if (i+1)%w.config.CommitEvery == 0 {
			if err := w.txn.Commit(); err != nil {
				return fmt.Errorf("block %d: committing transaction: %w", i, err)
			}
			if err := w.openEngine(); err != nil {
				return fmt.Errorf("block %d: reopening engine: %w", i, err)
			}
		}
	}
	return w.txn.Commit()
}
