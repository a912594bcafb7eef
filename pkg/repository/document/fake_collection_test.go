package document

import (
	"cmp"
	"context"
	"fmt"
	"regexp"
	"slices"
	"sync"

	"github.com/nimburion/docstore/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type testBook struct {
	ID     string `bson:"_id,omitempty" json:"id"`
	Title  string `bson:"title" json:"title"`
	Author string `bson:"author,omitempty" json:"author,omitempty"`
	Year   int    `bson:"year,omitempty" json:"year,omitempty"`
}

func (b *testBook) GetID() string       { return b.ID }
func (b *testBook) SetID(id string)     { b.ID = id }
func (testBook) CollectionName() string { return "books" }

func (b *testBook) field(name string) any {
	switch name {
	case "_id":
		return b.ID
	case "title":
		return b.Title
	case "author":
		return b.Author
	case "year":
		return b.Year
	default:
		return nil
	}
}

// memoryCollection is an in-memory Collection[*testBook] that evaluates the
// filter shapes the repository emits: {}, equality, and case-insensitive regex.
type memoryCollection struct {
	mu    sync.Mutex
	name  string
	docs  []*testBook
	calls []recordedCall

	countErr error
	findErr  error
	// block makes Find or CountDocuments wait for context cancellation.
	blockFind  bool
	blockCount bool
}

type recordedCall struct {
	op     string
	filter bson.M
	opts   FindOptions
}

func newMemoryCollection(docs ...*testBook) *memoryCollection {
	c := &memoryCollection{name: "books"}
	for _, d := range docs {
		c.docs = append(c.docs, cloneBook(d))
	}
	return c
}

func cloneBook(b *testBook) *testBook {
	c := *b
	return &c
}

func (c *memoryCollection) Name() string { return c.name }

func (c *memoryCollection) record(op string, filter bson.M, opts FindOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, recordedCall{op: op, filter: filter, opts: opts})
}

func (c *memoryCollection) lastCall(op string) (recordedCall, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.calls) - 1; i >= 0; i-- {
		if c.calls[i].op == op {
			return c.calls[i], true
		}
	}
	return recordedCall{}, false
}

func (c *memoryCollection) Find(ctx context.Context, filter bson.M, opts FindOptions) ([]*testBook, error) {
	c.record("find", filter, opts)
	if c.blockFind {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.findErr != nil {
		return nil, c.findErr
	}

	matched, err := c.match(filter)
	if err != nil {
		return nil, err
	}
	if len(opts.Sort) > 0 {
		key := opts.Sort[0].Key
		dir := opts.Sort[0].Value.(int)
		slices.SortStableFunc(matched, func(a, b *testBook) int {
			return dir * compareValues(a.field(key), b.field(key))
		})
	}
	if opts.Skip > 0 {
		if opts.Skip >= int64(len(matched)) {
			matched = nil
		} else {
			matched = matched[opts.Skip:]
		}
	}
	if opts.Limit > 0 && int64(len(matched)) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]*testBook, 0, len(matched))
	for _, d := range matched {
		out = append(out, cloneBook(d))
	}
	return out, nil
}

func (c *memoryCollection) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	c.record("count", filter, FindOptions{})
	if c.blockCount {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if c.countErr != nil {
		return 0, c.countErr
	}
	matched, err := c.match(filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (c *memoryCollection) InsertOne(ctx context.Context, d *testBook) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.docs {
		if existing.ID == d.ID {
			return fmt.Errorf("%w: duplicate _id %s", repository.ErrIntegrity, d.ID)
		}
	}
	c.docs = append(c.docs, cloneBook(d))
	return nil
}

func (c *memoryCollection) FindOneAndReplace(ctx context.Context, filter bson.M, d *testBook) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.docs {
		if ok, _ := matches(existing, filter); ok {
			c.docs[i] = cloneBook(d)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (c *memoryCollection) FindOneAndDelete(ctx context.Context, filter bson.M) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.docs {
		if ok, _ := matches(existing, filter); ok {
			c.docs = slices.Delete(c.docs, i, i+1)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (c *memoryCollection) match(filter bson.M) ([]*testBook, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*testBook
	for _, d := range c.docs {
		ok, err := matches(d, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func matches(d *testBook, filter bson.M) (bool, error) {
	for key, want := range filter {
		got := d.field(key)
		switch w := want.(type) {
		case primitive.Regex:
			flags := ""
			if w.Options == "i" {
				flags = "(?i)"
			}
			re, err := regexp.Compile(flags + w.Pattern)
			if err != nil {
				return false, err
			}
			s, ok := got.(string)
			if !ok || !re.MatchString(s) {
				return false, nil
			}
		case bson.M:
			in, ok := w["$in"].(bson.A)
			if !ok || !slices.Contains(in, got) {
				return false, nil
			}
		default:
			if got != want {
				return false, nil
			}
		}
	}
	return true, nil
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		return cmp.Compare(av, b.(string))
	case int:
		return cmp.Compare(av, b.(int))
	default:
		return 0
	}
}
