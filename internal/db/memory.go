package membership

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	models "github.com/mayukomayuko7-bot/warakado-vision/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrUnavailable = errors.New("directory unavailable")

type memDoc struct {
	id  string
	raw bson.Raw
}

type subscriber struct {
	orderField string
	onChange   func([]models.Document)
}

// Directory в памяти процесса: режим разработки и тесты.
// SetOnline(false) - нет авторизации, SetFailing(true) - все вызовы падают.
type MemoryDirectory struct {
	mu      sync.Mutex
	colls   map[string][]memDoc
	subs    map[string]map[int]subscriber
	nextSub int
	online  atomic.Bool
	failing atomic.Bool
}

func NewMemoryDirectory() *MemoryDirectory {
	d := &MemoryDirectory{
		colls: make(map[string][]memDoc),
		subs:  make(map[string]map[int]subscriber),
	}
	d.online.Store(true)
	return d
}

func (d *MemoryDirectory) SetOnline(online bool) {
	d.online.Store(online)
}

func (d *MemoryDirectory) SetFailing(failing bool) {
	d.failing.Store(failing)
}

func (d *MemoryDirectory) Online() bool {
	return d.online.Load()
}

func (d *MemoryDirectory) check(ctx context.Context) error {
	if d.failing.Load() {
		return ErrUnavailable
	}
	return ctx.Err()
}

func (d *MemoryDirectory) FindOne(ctx context.Context, collection string, filter models.Filter) (models.Document, error) {
	if err := d.check(ctx); err != nil {
		return models.Document{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, doc := range d.colls[collection] {
		m := bson.M{}
		if err := bson.Unmarshal(doc.raw, &m); err != nil {
			return models.Document{}, err
		}
		if matches(m, filter) {
			return models.Document{Ref: models.DocRef{Collection: collection, ID: doc.id}, Raw: doc.raw}, nil
		}
	}
	return models.Document{}, models.ErrDocumentNotFound
}

func (d *MemoryDirectory) Insert(ctx context.Context, collection string, record any) (models.DocRef, error) {
	if err := d.check(ctx); err != nil {
		return models.DocRef{}, err
	}
	raw, err := bson.Marshal(record)
	if err != nil {
		return models.DocRef{}, err
	}
	ref := models.DocRef{Collection: collection, ID: uuid.NewString()}
	d.mu.Lock()
	d.colls[collection] = append(d.colls[collection], memDoc{ref.ID, raw})
	d.mu.Unlock()

	d.publish(collection)
	return ref, nil
}

func (d *MemoryDirectory) UpdateFields(ctx context.Context, ref models.DocRef, fields models.Fields) error {
	return d.modify(ctx, ref, func(m bson.M) error {
		for k, v := range fields {
			m[k] = v
		}
		return nil
	})
}

func (d *MemoryDirectory) Increment(ctx context.Context, ref models.DocRef, field string, delta int) error {
	return d.modify(ctx, ref, func(m bson.M) error {
		var current float64
		if v, ok := m[field]; ok {
			f, ok := toFloat64(v)
			if !ok {
				return fmt.Errorf("field %s is not numeric", field)
			}
			current = f
		}
		m[field] = int64(current) + int64(delta)
		return nil
	})
}

func (d *MemoryDirectory) modify(ctx context.Context, ref models.DocRef, fn func(bson.M) error) error {
	if err := d.check(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	docs := d.colls[ref.Collection]
	idx := -1
	for i, doc := range docs {
		if doc.id == ref.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.mu.Unlock()
		return models.ErrDocumentNotFound
	}
	m := bson.M{}
	err := bson.Unmarshal(docs[idx].raw, &m)
	if err == nil {
		err = fn(m)
	}
	if err == nil {
		var raw bson.Raw
		raw, err = bson.Marshal(m)
		if err == nil {
			docs[idx].raw = raw
		}
	}
	d.mu.Unlock()
	if err != nil {
		return err
	}

	d.publish(ref.Collection)
	return nil
}

func (d *MemoryDirectory) Subscribe(ctx context.Context, collection string, orderField string, onChange func([]models.Document)) (func(), error) {
	if err := d.check(ctx); err != nil {
		return nil, err
	}
	d.mu.Lock()
	if d.subs[collection] == nil {
		d.subs[collection] = make(map[int]subscriber)
	}
	id := d.nextSub
	d.nextSub++
	d.subs[collection][id] = subscriber{orderField, onChange}
	snap := d.snapshot(collection, orderField)
	d.mu.Unlock()

	onChange(snap)
	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs[collection], id)
			d.mu.Unlock()
		})
	}, nil
}

// рассылка снимков подписчикам, вызывается без блокировки
func (d *MemoryDirectory) publish(collection string) {
	type delivery struct {
		fn   func([]models.Document)
		docs []models.Document
	}
	d.mu.Lock()
	var out []delivery
	for _, s := range d.subs[collection] {
		out = append(out, delivery{s.onChange, d.snapshot(collection, s.orderField)})
	}
	d.mu.Unlock()
	for _, v := range out {
		v.fn(v.docs)
	}
}

// снимок коллекции по убыванию orderField
func (d *MemoryDirectory) snapshot(collection string, orderField string) []models.Document {
	docs := d.colls[collection]
	type keyed struct {
		doc models.Document
		key any
	}
	list := make([]keyed, 0, len(docs))
	for _, doc := range docs {
		m := bson.M{}
		_ = bson.Unmarshal(doc.raw, &m)
		list = append(list, keyed{models.Document{Ref: models.DocRef{Collection: collection, ID: doc.id}, Raw: doc.raw}, m[orderField]})
	}
	sort.SliceStable(list, func(i, j int) bool {
		res, err := compareValues(list[i].key, list[j].key)
		return err == nil && res == 1
	})
	result := make([]models.Document, len(list))
	for i, v := range list {
		result[i] = v.doc
	}
	return result
}

func matches(doc bson.M, filter models.Filter) bool {
	for field, want := range filter {
		got, ok := doc[field]
		if !ok {
			return false
		}
		res, err := compareValues(want, got)
		if err != nil || res != 0 {
			return false
		}
	}
	return true
}

// Если равны возвращаем 0, если a больше b возвращаем 1, если меньше -1
// Пробуем по очереди: даты, числа, булеан, строки
func compareValues(a, b any) (int, error) {
	// даты
	ta, aok := toTime(a)
	tb, bok := toTime(b)
	if aok && bok {
		switch {
		case ta.After(tb):
			return 1, nil
		case ta.Before(tb):
			return -1, nil
		default:
			return 0, nil
		}
	}

	// числа
	na, aok := toFloat64(a)
	nb, bok := toFloat64(b)
	if aok && bok {
		switch {
		case na > nb:
			return 1, nil
		case na < nb:
			return -1, nil
		default:
			return 0, nil
		}
	}

	// bool
	ba, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		switch {
		case ba == bb:
			return 0, nil
		case ba:
			return 1, nil
		default:
			return -1, nil
		}
	}

	// string
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		switch {
		case sa > sb:
			return 1, nil
		case sa < sb:
			return -1, nil
		default:
			return 0, nil
		}
	}

	return 0, fmt.Errorf("compare is impossible")
}

// преобразование в float64
func toFloat64(a any) (float64, bool) {
	switch val := a.(type) {
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case float64:
		return val, true
	}
	return 0, false
}

func toTime(a any) (time.Time, bool) {
	switch val := a.(type) {
	case time.Time:
		return val, true
	case primitive.DateTime:
		return val.Time(), true
	}
	return time.Time{}, false
}
