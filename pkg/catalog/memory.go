// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package catalog

import (
	"context"
	"sync"

	"github.com/teradata-labs/loom-pos/pkg/types"
)

// MemoryCatalog is an in-memory product catalog. It is safe for concurrent
// use.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products []types.ProductInfo
}

// NewMemoryCatalog creates a catalog holding the given products.
func NewMemoryCatalog(products ...types.ProductInfo) *MemoryCatalog {
	c := &MemoryCatalog{}
	for _, p := range products {
		c.Put(p)
	}
	return c
}

// Put adds a product or replaces the one with the same SKU.
func (c *MemoryCatalog) Put(p types.ProductInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.products {
		if c.products[i].SKU == p.SKU {
			c.products[i] = p
			return
		}
	}
	c.products = append(c.products, p)
}

// Len returns the number of products.
func (c *MemoryCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

// Search returns up to maxResults products ranked against term. Inactive
// products are included; callers decide what to do with them.
func (c *MemoryCatalog) Search(ctx context.Context, term string, maxResults int) ([]types.ProductInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return rank(term, c.products, maxResults), nil
}

// MemoryStore holds payment methods per store. It is safe for concurrent
// use.
type MemoryStore struct {
	mu      sync.RWMutex
	methods map[string][]types.PaymentMethodDescriptor
}

// NewMemoryStore creates an empty store configuration.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{methods: make(map[string][]types.PaymentMethodDescriptor)}
}

// SetPaymentMethods replaces the methods of a store.
func (s *MemoryStore) SetPaymentMethods(storeID string, methods ...types.PaymentMethodDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[storeID] = append([]types.PaymentMethodDescriptor(nil), methods...)
}

// PaymentMethods returns the configured methods, enabled or not. An unknown
// store has none.
func (s *MemoryStore) PaymentMethods(ctx context.Context, storeID string) ([]types.PaymentMethodDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.PaymentMethodDescriptor(nil), s.methods[storeID]...), nil
}

var (
	_ types.Catalog     = (*MemoryCatalog)(nil)
	_ types.StoreConfig = (*MemoryStore)(nil)
)
