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
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/teradata-labs/loom-pos/pkg/types"
)

// Fixture is the YAML form of a catalog and its stores.
//
//	products:
//	  - sku: LATTE
//	    name: Latte
//	    price: "4.50"
//	stores:
//	  uptown:
//	    payment_methods:
//	      - id: cash
//	        name: Cash
//	        type: cash
type Fixture struct {
	Products []FixtureProduct        `yaml:"products"`
	Stores   map[string]FixtureStore `yaml:"stores"`
}

// FixtureProduct is a product entry. Products are active unless marked
// inactive.
type FixtureProduct struct {
	SKU      string `yaml:"sku"`
	Name     string `yaml:"name"`
	Price    string `yaml:"price"`
	Inactive bool   `yaml:"inactive,omitempty"`
}

// FixtureStore lists a store's payment methods.
type FixtureStore struct {
	PaymentMethods []FixtureMethod `yaml:"payment_methods"`
}

// FixtureMethod is a payment method entry. Methods are enabled unless
// marked disabled.
type FixtureMethod struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Minimum  string `yaml:"minimum,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// LoadFixture reads and validates a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes and validates fixture YAML.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog fixture: %w", err)
	}
	if _, err := f.ProductInfos(); err != nil {
		return nil, err
	}
	for storeID := range f.Stores {
		if _, err := f.Methods(storeID); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

// ProductInfos converts the product entries.
func (f *Fixture) ProductInfos() ([]types.ProductInfo, error) {
	seen := make(map[string]bool, len(f.Products))
	out := make([]types.ProductInfo, 0, len(f.Products))
	for i, p := range f.Products {
		if p.SKU == "" || p.Name == "" {
			return nil, fmt.Errorf("product %d: sku and name are required", i)
		}
		if seen[p.SKU] {
			return nil, fmt.Errorf("product %s: duplicate sku", p.SKU)
		}
		seen[p.SKU] = true
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("product %s: invalid price %q: %w", p.SKU, p.Price, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("product %s: price must not be negative", p.SKU)
		}
		out = append(out, types.ProductInfo{
			SKU:         p.SKU,
			DisplayName: p.Name,
			BasePrice:   price,
			Active:      !p.Inactive,
		})
	}
	return out, nil
}

// Methods converts a store's payment methods. An unknown store has none.
func (f *Fixture) Methods(storeID string) ([]types.PaymentMethodDescriptor, error) {
	store := f.Stores[storeID]
	out := make([]types.PaymentMethodDescriptor, 0, len(store.PaymentMethods))
	for _, m := range store.PaymentMethods {
		if m.ID == "" {
			return nil, fmt.Errorf("store %s: payment method id is required", storeID)
		}
		minimum := decimal.Zero
		if m.Minimum != "" {
			v, err := decimal.NewFromString(m.Minimum)
			if err != nil {
				return nil, fmt.Errorf("store %s: method %s: invalid minimum %q: %w", storeID, m.ID, m.Minimum, err)
			}
			minimum = v
		}
		name := m.Name
		if name == "" {
			name = m.ID
		}
		out = append(out, types.PaymentMethodDescriptor{
			ID:            m.ID,
			DisplayName:   name,
			Type:          m.Type,
			MinimumAmount: minimum,
			Enabled:       !m.Disabled,
		})
	}
	return out, nil
}

// Memory builds an in-memory catalog and store from the fixture.
func (f *Fixture) Memory() (*MemoryCatalog, *MemoryStore, error) {
	products, err := f.ProductInfos()
	if err != nil {
		return nil, nil, err
	}
	store := NewMemoryStore()
	for storeID := range f.Stores {
		methods, err := f.Methods(storeID)
		if err != nil {
			return nil, nil, err
		}
		store.SetPaymentMethods(storeID, methods...)
	}
	return NewMemoryCatalog(products...), store, nil
}
