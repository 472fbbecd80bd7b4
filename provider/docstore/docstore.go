// Package docstore is a persistent tier on top of the clover document store.
// Entries are documents in one collection named after the configured env;
// expiry is kept both in the entry frame and in an indexed-by-query field so
// reads and counts can filter dead documents out.
package docstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"sync"

	"github.com/ostafen/clover"

	"github.com/unkn0wn-root/multicache/internal/util"
	"github.com/unkn0wn-root/multicache/internal/wire"
	pr "github.com/unkn0wn-root/multicache/provider"
)

const (
	fieldKey     = "key"
	fieldRegion  = "region"
	fieldExpires = "expires" // unix millis; never for permanent entries
	fieldEntry   = "entry"   // base64 wire frame

	never int64 = 1 << 62
)

type Config struct {
	// Path is the database directory. It is locked while the tier is open, so
	// two tiers cannot share one path.
	Path string `yaml:"path"`
	// Env names the collection.
	Env string `yaml:"env"`
}

type DocStore struct {
	pr.Base
	db   *clover.DB
	coll string

	mu sync.Mutex // serializes replace-by-key writes
}

var (
	_ pr.Provider  = (*DocStore)(nil)
	_ pr.Inspector = (*DocStore)(nil)
)

func New(base pr.Config, cfg Config) (*DocStore, error) {
	b, err := pr.NewBase(base)
	if err != nil {
		return nil, err
	}
	if cfg.Env == "" {
		return nil, pr.NewConfigError("env", "must be set for the docstore tier")
	}
	path := cfg.Path
	if path == "" {
		return nil, pr.NewConfigError("path", "must be set for the docstore tier")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("docstore: %w", err)
	}
	db, err := clover.Open(path)
	if err != nil {
		return nil, fmt.Errorf("docstore: open %s: %w", path, err)
	}
	exists, err := db.HasCollection(cfg.Env)
	if err == nil && !exists {
		err = db.CreateCollection(cfg.Env)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("docstore: collection %s: %w", cfg.Env, err)
	}
	return &DocStore{Base: b, db: db, coll: cfg.Env}, nil
}

func expiresField(e wire.Entry) int64 {
	if e.Permanent || e.ExpiresAt.IsZero() {
		return never
	}
	return e.ExpiresAt.UnixMilli()
}

func (p *DocStore) byKey(key, region string) *clover.Criteria {
	return clover.Field(fieldRegion).Eq(util.Region(region)).And(clover.Field(fieldKey).Eq(key))
}

func (p *DocStore) live() *clover.Criteria {
	return clover.Field(fieldExpires).Gt(p.Now().UnixMilli())
}

func (p *DocStore) inRegion(region string) *clover.Criteria {
	return clover.Field(fieldRegion).Eq(util.Region(region))
}

// load returns the live entry for key. Corrupt documents are deleted.
func (p *DocStore) load(key, region string) (wire.Entry, bool, error) {
	docs, err := p.db.Query(p.coll).Where(p.byKey(key, region).And(p.live())).FindAll()
	if err != nil {
		return wire.Entry{}, false, err
	}
	if len(docs) == 0 {
		return wire.Entry{}, false, nil
	}
	e, err := decodeDoc(docs[0])
	if err == nil && !e.Expired(p.Now()) {
		return e, true, nil
	}
	if err != nil {
		p.Log().Debug("dropped corrupt entry", pr.Fields{"tier": p.Name(), "key": key, "region": region})
	}
	return wire.Entry{}, false, p.db.Query(p.coll).Where(p.byKey(key, region)).Delete()
}

func decodeDoc(doc *clover.Document) (wire.Entry, error) {
	s, ok := doc.Get(fieldEntry).(string)
	if !ok {
		return wire.Entry{}, wire.ErrCorrupt
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return wire.Entry{}, wire.ErrCorrupt
	}
	return wire.Decode(raw)
}

// encodeEntry frames e for the document's string field.
func encodeEntry(e wire.Entry) (string, error) {
	raw, err := wire.Encode(e)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func (p *DocStore) Get(_ context.Context, key, region string) (any, bool, error) {
	if !p.Enabled() {
		return nil, false, nil
	}
	e, ok, err := p.load(key, region)
	if err != nil || !ok {
		return nil, false, err
	}
	if e.Sliding {
		e = e.Touch(p.Now())
		enc, err := encodeEntry(e)
		if err != nil {
			return nil, false, err
		}
		err = p.db.Query(p.coll).Where(p.byKey(key, region)).Update(map[string]interface{}{
			fieldExpires: expiresField(e),
			fieldEntry:   enc,
		})
		if err != nil {
			return nil, false, err
		}
	}
	v, err := p.Value(e)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (p *DocStore) Inspect(_ context.Context, key, region string) (pr.Item, bool, error) {
	if !p.Enabled() {
		return pr.Item{}, false, nil
	}
	e, ok, err := p.load(key, region)
	if err != nil || !ok {
		return pr.Item{}, false, err
	}
	it, err := p.Item(e)
	return it, err == nil, err
}

func (p *DocStore) Exist(_ context.Context, key, region string) (bool, error) {
	if !p.Enabled() {
		return false, nil
	}
	_, ok, err := p.load(key, region)
	return ok, err
}

func (p *DocStore) Add(_ context.Context, key string, value any, region string, opts pr.Options) (bool, error) {
	return p.add(key, value, region, opts, false)
}

func (p *DocStore) AddPermanent(_ context.Context, key string, value any, region string, opts pr.Options) (bool, error) {
	return p.add(key, value, region, opts, true)
}

func (p *DocStore) add(key string, value any, region string, opts pr.Options, permanent bool) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	e, err := p.NewEntry(value, opts, permanent)
	if err != nil {
		return false, err
	}
	enc, err := encodeEntry(e)
	if err != nil {
		return false, err
	}
	doc := clover.NewDocument()
	doc.Set(fieldKey, key)
	doc.Set(fieldRegion, util.Region(region))
	doc.Set(fieldExpires, expiresField(e))
	doc.Set(fieldEntry, enc)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.db.Query(p.coll).Where(p.byKey(key, region)).Delete(); err != nil {
		return false, err
	}
	if err := p.db.Insert(p.coll, doc); err != nil {
		return false, err
	}
	return true, nil
}

func (p *DocStore) Remove(_ context.Context, key, region string) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	if err := p.db.Query(p.coll).Where(p.byKey(key, region)).Delete(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *DocStore) RemoveAll(context.Context) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	if err := p.db.Query(p.coll).Delete(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *DocStore) RemoveRegion(_ context.Context, region string) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	if err := p.db.Query(p.coll).Where(p.inRegion(region)).Delete(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *DocStore) RemoveExpired(_ context.Context, region string) (bool, error) {
	if !p.Enabled() {
		return true, nil
	}
	q := p.db.Query(p.coll).Where(p.inRegion(region).And(clover.Field(fieldExpires).LtEq(p.Now().UnixMilli())))
	n, err := q.Count()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return true, nil
	}
	if err := q.Delete(); err != nil {
		return false, err
	}
	p.Log().Debug("purged expired entries", pr.Fields{"tier": p.Name(), "region": region, "removed": n})
	return true, nil
}

func (p *DocStore) Count(_ context.Context, region string) (int64, error) {
	if !p.Enabled() {
		return 0, nil
	}
	n, err := p.db.Query(p.coll).Where(p.inRegion(region).And(p.live())).Count()
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

func (p *DocStore) Close(context.Context) error {
	return p.db.Close()
}
