package adblock

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/AdguardTeam/adblock/filterlist"
	"github.com/AdguardTeam/adblock/resources"
	"github.com/AdguardTeam/adblock/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/klauspost/compress/zstd"
)

const (
	// ErrBadSnapshot is returned when the data is not a valid engine
	// snapshot.
	ErrBadSnapshot errors.Error = "bad engine snapshot"

	// ErrVersionMismatch is returned when the snapshot has been made by an
	// incompatible version of the engine.
	ErrVersionMismatch errors.Error = "engine snapshot version mismatch"
)

const (
	// snapshotMagic starts every snapshot.
	snapshotMagic = "ABES"

	// snapshotVersion is the current version of the snapshot format.  It must
	// be incremented on every incompatible change of the snapshot types or
	// the rule records.
	snapshotVersion uint16 = 1

	// snapshotHeaderLen is the length of the magic and the version.
	snapshotHeaderLen = len(snapshotMagic) + 2

	// maxSnapshotMemory limits the memory the decompressor may use.
	maxSnapshotMemory = 1 << 30
)

// snapshot is the serializable state of an *Engine.
type snapshot struct {
	Metadata  *filterlist.Metadata
	Lists     []*snapshotList
	Resources []*resources.Resource
	Tags      []string
}

// snapshotList is the serializable form of a filter list.
type snapshotList struct {
	Records []*rules.Record
	ID      int
}

// Serialize returns the snapshot of the engine: the rules, the resources, the
// enabled tags, and the metadata.  The engine restored from the snapshot with
// [Deserialize] answers all queries the same way as e.
func (e *Engine) Serialize() (data []byte, err error) {
	snap := &snapshot{
		Metadata:  e.metadata,
		Resources: e.resources.Resources(),
		Tags:      e.tags.List(),
	}

	for _, id := range e.storage.ListIDs() {
		l := &snapshotList{ID: id}
		for _, r := range e.storage.Rules(id) {
			var rec *rules.Record
			rec, err = rules.NewRecord(r)
			if err != nil {
				return nil, fmt.Errorf("list %d: %w", id, err)
			}

			l.Records = append(l.Records, rec)
		}

		snap.Lists = append(snap.Lists, l)
	}

	buf := &bytes.Buffer{}
	buf.WriteString(snapshotMagic)
	buf.Write(binary.BigEndian.AppendUint16(nil, snapshotVersion))

	zw, err := zstd.NewWriter(buf, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}

	err = gob.NewEncoder(zw).Encode(snap)
	if err != nil {
		return nil, errors.WithDeferred(fmt.Errorf("encoding snapshot: %w", err), zw.Close())
	}

	err = zw.Close()
	if err != nil {
		return nil, fmt.Errorf("compressing snapshot: %w", err)
	}

	return buf.Bytes(), nil
}

// Deserialize restores an engine from the snapshot made by [Engine.Serialize].
// conf may be nil, in which case the defaults are used.
func Deserialize(data []byte, conf *Config) (e *Engine, err error) {
	conf = conf.withDefaults()

	snap, err := decodeSnapshot(data)
	if err != nil {
		return nil, err
	}

	s, err := snap.storage()
	if err != nil {
		return nil, err
	}

	store := resources.NewStore()
	for _, r := range snap.Resources {
		err = store.Add(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
		}
	}

	e = newEngine(conf, s, store, newTags(snap.Tags...), snap.Metadata)
	e.logger.Info(
		"engine restored",
		"network_rules", e.network.RulesCount,
		"cosmetic_rules", e.cosmetic.RulesCount,
		"resources", len(snap.Resources),
	)

	return e, nil
}

// DeserializeWithMetadata is like [Deserialize] but also returns the metadata
// carried by the snapshot.
func DeserializeWithMetadata(data []byte, conf *Config) (e *Engine, md *filterlist.Metadata, err error) {
	e, err = Deserialize(data, conf)
	if err != nil {
		return nil, nil, err
	}

	return e, e.Metadata(), nil
}

// Deserialize replaces the state of e with the one restored from data and
// releases the previous rules.  If data is invalid, e is left unchanged.
func (e *Engine) Deserialize(data []byte) (err error) {
	restored, err := Deserialize(data, &Config{
		Logger:         e.logger,
		DomainResolver: e.resolve,
	})
	if err != nil {
		return err
	}

	prev := e.storage
	gen := e.generation + 1
	*e = *restored
	e.generation = gen

	return prev.Close()
}

// decodeSnapshot checks the header of data and decodes the snapshot.
func decodeSnapshot(data []byte) (snap *snapshot, err error) {
	if len(data) < snapshotHeaderLen || string(data[:len(snapshotMagic)]) != snapshotMagic {
		return nil, ErrBadSnapshot
	}

	v := binary.BigEndian.Uint16(data[len(snapshotMagic):snapshotHeaderLen])
	if v != snapshotVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, v, snapshotVersion)
	}

	zr, err := zstd.NewReader(
		bytes.NewReader(data[snapshotHeaderLen:]),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxSnapshotMemory),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	defer zr.Close()

	snap = &snapshot{}
	err = gob.NewDecoder(zr).Decode(snap)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding: %w", ErrBadSnapshot, err)
	}

	return snap, nil
}

// storage restores the rule storage from the snapshot lists.
func (snap *snapshot) storage() (s *filterlist.RuleStorage, err error) {
	lists := make([]filterlist.RuleList, 0, len(snap.Lists))
	for _, l := range snap.Lists {
		lists = append(lists, &filterlist.StringRuleList{ID: l.ID})
	}

	s, err = filterlist.NewRuleStorage(lists, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}

	for _, l := range snap.Lists {
		for i, rec := range l.Records {
			var r rules.Rule
			r, err = rec.Rule()
			if err != nil {
				return nil, fmt.Errorf("%w: list %d: record %d: %w", ErrBadSnapshot, l.ID, i, err)
			}

			if r.GetFilterListID() != l.ID {
				return nil, fmt.Errorf("%w: list %d: record %d: wrong list id", ErrBadSnapshot, l.ID, i)
			}

			s.Add(r)
		}
	}

	return s, nil
}
