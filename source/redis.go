/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/rulego/rowcache/types"
)

// DefaultRedisPageSize is the number of list elements fetched per LRANGE
const DefaultRedisPageSize = 256

// RedisListSource reads rows stored as JSON objects in a Redis list. The
// list length is read once when the source is created and is treated as the
// known size; the list must not change afterwards.
type RedisListSource struct {
	client   redis.Cmdable
	key      string
	schema   *types.Schema
	size     int64
	pageSize int64
}

// RedisOption configures a RedisListSource
type RedisOption func(*RedisListSource)

// WithRedisSchema fixes the schema instead of inferring it from the first element
func WithRedisSchema(schema *types.Schema) RedisOption {
	return func(s *RedisListSource) {
		s.schema = schema
	}
}

// WithRedisPageSize sets how many elements one round trip fetches
func WithRedisPageSize(n int) RedisOption {
	return func(s *RedisListSource) {
		if n > 0 {
			s.pageSize = int64(n)
		}
	}
}

// NewRedisListSource opens the list stored at key
func NewRedisListSource(ctx context.Context, client redis.Cmdable, key string,
	opts ...RedisOption) (*RedisListSource, error) {
	s := &RedisListSource{client: client, key: key, pageSize: DefaultRedisPageSize}
	for _, opt := range opts {
		opt(s)
	}

	size, err := client.LLen(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("llen %s: %w", key, err)
	}
	s.size = size

	if s.schema != nil {
		return s, nil
	}
	if size == 0 {
		s.schema, _ = types.NewSchema()
		return s, nil
	}
	first, err := client.LIndex(ctx, key, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("lindex %s: %w", key, err)
	}
	if s.schema, err = inferSchema([]byte(first)); err != nil {
		return nil, fmt.Errorf("infer schema of %s: %w", key, err)
	}
	return s, nil
}

func (s *RedisListSource) Schema() *types.Schema {
	return s.schema
}

func (s *RedisListSource) KnownSize() (int64, bool) {
	return s.size, true
}

func (s *RedisListSource) OpenIterator(ctx context.Context, included []string) (types.RowIterator, error) {
	projected, err := s.schema.Project(included)
	if err != nil {
		return nil, err
	}
	return &redisIterator{ctx: ctx, src: s, schema: projected}, nil
}

type redisIterator struct {
	ctx    context.Context
	src    *RedisListSource
	schema *types.Schema
	page   []string
	pos    int64 // absolute position of page[0]
	offset int
	closed bool
}

func (it *redisIterator) Next() (*types.Row, error) {
	if it.closed {
		return nil, types.ErrClosed
	}
	if it.offset >= len(it.page) {
		if err := it.fetch(); err != nil {
			return nil, err
		}
	}
	record := it.page[it.offset]
	pos := it.pos + int64(it.offset)
	it.offset++

	row, err := decodeRow([]byte(record), it.schema, pos, nil)
	if err != nil {
		return nil, fmt.Errorf("element %d: %w", pos, err)
	}
	return row, nil
}

func (it *redisIterator) fetch() error {
	start := it.pos + int64(len(it.page))
	if start >= it.src.size {
		return io.EOF
	}
	stop := start + it.src.pageSize - 1
	if stop >= it.src.size {
		stop = it.src.size - 1
	}
	page, err := it.src.client.LRange(it.ctx, it.src.key, start, stop).Result()
	if err != nil {
		return fmt.Errorf("lrange %s: %w", it.src.key, err)
	}
	if len(page) == 0 {
		return io.EOF
	}
	it.page, it.pos, it.offset = page, start, 0
	return nil
}

func (it *redisIterator) Close() error {
	it.closed = true
	it.page = nil
	return nil
}

// WriteRedisList appends every row of src to the list at key and returns
// the number of rows written.
func WriteRedisList(ctx context.Context, client redis.Cmdable, key string,
	src types.RowSource) (int64, error) {
	it, err := src.OpenIterator(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	var n int64
	batch := make([]interface{}, 0, DefaultRedisPageSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := client.RPush(ctx, key, batch...).Err()
		batch = batch[:0]
		return err
	}
	for {
		row, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, err
		}
		data, err := encodeRow(row)
		if err != nil {
			return n, err
		}
		batch = append(batch, string(data))
		n++
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return n, err
			}
		}
	}
	return n, flush()
}
