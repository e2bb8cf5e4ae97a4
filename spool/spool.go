package spool

import (
	"encoding/binary"
	"errors"
	"os"

	"github.com/moontrade/exportstream/export"
	"github.com/moontrade/exportstream/logger"
	"github.com/moontrade/exportstream/wire"
	"github.com/moontrade/mdbx-go"
)

var (
	ErrPathNotDir = errors.New("path is not a directory")
)

const (
	// DefaultFlags trades metadata durability for throughput; pair with
	// explicit Sync calls at checkpoint boundaries.
	DefaultFlags = mdbx.EnvNoMetaSync |
		mdbx.EnvNoTLS |
		mdbx.EnvWriteMap |
		mdbx.EnvLIFOReclaim |
		mdbx.EnvNoMemInit |
		mdbx.EnvCoalesce

	// DurableFlags syncs every commit.
	DurableFlags = mdbx.EnvSyncDurable |
		mdbx.EnvNoTLS |
		mdbx.EnvWriteMap |
		mdbx.EnvLIFOReclaim |
		mdbx.EnvNoMemInit |
		mdbx.EnvCoalesce

	Kilobyte = 1024
	Megabyte = 1024 * 1024
	Gigabyte = Megabyte * 1024
)

var (
	_ export.Sink = (*Store)(nil)

	DefaultGeometry = mdbx.Geometry{
		SizeLower:       1 * Megabyte,
		SizeNow:         1 * Megabyte,
		SizeUpper:       4 * Gigabyte,
		GrowthStep:      16 * Megabyte,
		ShrinkThreshold: 8 * Megabyte,
		PageSize:        4 * Kilobyte,
	}
)

const (
	spoolDBI = "exportspool"

	keySize        = 16
	envelopeHeader = 4 + 1 + 4
)

// Store is a durable top end. Every buffer a TupleStream hands off is
// persisted under a (generation, starting USO) key, so a spool scan replays
// the partition's export stream in commit order. End-of-stream
// notifications are stored as empty-data marker entries keyed at the
// largest int64 USO of their generation.
type Store struct {
	store *mdbx.Store
	dbi   mdbx.DBI
}

// Entry is one persisted handoff.
type Entry struct {
	Generation  int64
	USO         int64
	PartitionID int32
	Signature   string
	EndOfStream bool
	Data        []byte
}

func Open(path string, flags mdbx.EnvFlags, mode os.FileMode) (*Store, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err = os.MkdirAll(path, mode); err != nil {
			return nil, err
		}
	} else if !stat.IsDir() {
		return nil, ErrPathNotDir
	}

	s := &Store{}

	if s.store, err = mdbx.Open(path, flags, mode,
		func(env *mdbx.Env, create bool) error {
			if e := env.SetMaxDBS(1); e != mdbx.ErrSuccess {
				return e
			}
			if e := env.SetGeometry(DefaultGeometry); e != mdbx.ErrSuccess {
				return e
			}
			return nil
		}, func(store *mdbx.Store, create bool) error {
			return store.Update(func(tx *mdbx.Tx) error {
				var e mdbx.Error
				if s.dbi, e = tx.OpenDBI(spoolDBI, mdbx.DBCreate); e != mdbx.ErrSuccess {
					return e
				}
				return nil
			})
		}); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.store.Close()
}

func (s *Store) Sync() error {
	if e := s.store.Env().Sync(true, false); e != mdbx.ErrSuccess {
		return e
	}
	return nil
}

// PushExportBuffer implements export.Sink. The stream gives up ownership of
// the buffer bytes; they are marshalled straight into the MDBX-managed page
// and not retained. A persistence failure is logged rather than surfaced;
// the stream has already released the byte range and cannot retry it.
func (s *Store) PushExportBuffer(generationID int64, partitionID int32, signature string,
	buffer *export.Buffer, sync bool, endOfStream bool) {

	var (
		uso  int64
		data []byte
	)
	if buffer != nil {
		uso = buffer.USO
		data = buffer.Data
	} else {
		// An end-of-stream notification carries no offset. Key it after
		// every data entry of its generation so it neither replaces one nor
		// sorts ahead of them.
		uso = 1<<63 - 1
	}

	if err := s.store.Update(func(tx *mdbx.Tx) error {
		var (
			key  [keySize]byte
			kb   = key[:]
			size = envelopeHeader + len(signature) + len(data)
		)
		binary.BigEndian.PutUint64(key[0:], uint64(generationID))
		binary.BigEndian.PutUint64(key[8:], uint64(uso))

		var (
			k = mdbx.Bytes(&kb)
			v = mdbx.Val{Len: uint64(size)}
		)
		// PutReserve to marshal directly into the MDBX managed buffer.
		if e := tx.Put(s.dbi, &k, &v, mdbx.PutReserve); e != mdbx.ErrSuccess {
			return e
		}
		return marshalEntry(v.UnsafeBytes(), partitionID, signature, endOfStream, data)
	}); err != nil && err != mdbx.ErrSuccess {
		logger.Error(err, "generation", generationID, "uso", uso, "spool push failed")
		return
	}

	if sync {
		if err := s.Sync(); err != nil {
			logger.WarnErr(err, "spool sync failed")
		}
	}
}

// Scan walks every persisted entry in (generation, USO) order. Return false
// from fn to stop early. Data and Signature are copied out of the
// transaction.
func (s *Store) Scan(fn func(entry Entry) bool) error {
	if err := s.store.View(func(tx *mdbx.Tx) error {
		cursor, e := tx.OpenCursor(s.dbi)
		if e != mdbx.ErrSuccess {
			return e
		}
		defer cursor.Close()

		var k, v mdbx.Val
		op := mdbx.CursorFirst
		for {
			if e = cursor.Get(&k, &v, op); e != mdbx.ErrSuccess {
				if e == mdbx.ErrNotFound {
					return nil
				}
				return e
			}
			op = mdbx.CursorNext

			entry, err := unmarshalEntry(k.UnsafeBytes(), v.UnsafeBytes())
			if err != nil {
				return err
			}
			if !fn(entry) {
				return nil
			}
		}
	}); err != nil && err != mdbx.ErrSuccess {
		return err
	}
	return nil
}

func marshalEntry(b []byte, partitionID int32, signature string, endOfStream bool, data []byte) error {
	w := wire.NewWriter(b)
	if err := w.WriteInt32(partitionID); err != nil {
		return err
	}
	if err := w.WriteBool(endOfStream); err != nil {
		return err
	}
	if err := w.WriteInt32(int32(len(signature))); err != nil {
		return err
	}
	if err := w.WriteString(signature); err != nil {
		return err
	}
	return w.Write(data)
}

func unmarshalEntry(key, value []byte) (Entry, error) {
	var entry Entry
	if len(key) != keySize {
		return entry, errors.New("malformed spool key")
	}
	entry.Generation = int64(binary.BigEndian.Uint64(key[0:]))
	entry.USO = int64(binary.BigEndian.Uint64(key[8:]))

	r := wire.NewReader(value)
	var err error
	if entry.PartitionID, err = r.ReadInt32(); err != nil {
		return entry, err
	}
	if entry.EndOfStream, err = r.ReadBool(); err != nil {
		return entry, err
	}
	sig, err := r.ReadBinary()
	if err != nil {
		return entry, err
	}
	entry.Signature = string(sig)

	if n := r.Remaining(); n > 0 {
		entry.Data = make([]byte, n)
		if err = r.ReadBytes(entry.Data); err != nil {
			return entry, err
		}
	}
	return entry, nil
}
