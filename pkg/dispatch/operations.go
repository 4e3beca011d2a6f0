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
package dispatch

import (
	"github.com/teradata-labs/loom-pos/pkg/conversation"
	"github.com/teradata-labs/loom-pos/pkg/types"
)

// Operation names.
const (
	OpAddItem             = "add_item"
	OpRemoveItem          = "remove_item"
	OpUpdateQuantity      = "update_quantity"
	OpComputeTotal        = "compute_total"
	OpLoadPaymentMethods  = "load_payment_methods"
	OpProcessPayment      = "process_payment"
	OpStartNewTransaction = "start_new_transaction"
)

// Category groups operations for phase gating.
type Category string

const (
	CategoryOrdering Category = "ordering"
	CategoryQuery    Category = "query"
	CategoryPayment  Category = "payment"
	CategoryControl  Category = "control"
)

type operation struct {
	schema   types.ToolSchema
	category Category

	// event is raised on the conversation when the operation succeeds
	event string
}

var operations = []operation{
	{
		schema: types.ToolSchema{
			Name:        OpAddItem,
			Description: "Add a product to the order. Search by base product name only.",
			Parameters: types.NewObjectSchema("", map[string]*types.JSONSchema{
				"product":  types.NewStringSchema("Base product name, e.g. \"Latte\". Never include size, milk or other preparation details.").WithLength(intPtr(1), nil),
				"quantity": types.NewIntegerSchema("Number of units, default 1").WithMinimum(1),
				"notes":    types.NewStringSchema("Preparation details such as size, milk or sweetness"),
			}, []string{"product"}),
		},
		category: CategoryOrdering,
		event:    conversation.EventContinueOrdering,
	},
	{
		schema: types.ToolSchema{
			Name:        OpRemoveItem,
			Description: "Remove a product from the order, or some units of it.",
			Parameters: types.NewObjectSchema("", map[string]*types.JSONSchema{
				"product":  types.NewStringSchema("Product name as ordered"),
				"line_id":  types.NewStringSchema("Order line id, when known"),
				"quantity": types.NewIntegerSchema("Units to remove, default all").WithMinimum(1),
			}, nil),
		},
		category: CategoryOrdering,
		event:    conversation.EventContinueOrdering,
	},
	{
		schema: types.ToolSchema{
			Name:        OpUpdateQuantity,
			Description: "Set the quantity of a product already in the order. Zero removes it.",
			Parameters: types.NewObjectSchema("", map[string]*types.JSONSchema{
				"product":  types.NewStringSchema("Product name as ordered"),
				"line_id":  types.NewStringSchema("Order line id, when known"),
				"quantity": types.NewIntegerSchema("New number of units").WithMinimum(0),
			}, []string{"quantity"}),
		},
		category: CategoryOrdering,
		event:    conversation.EventContinueOrdering,
	},
	{
		schema: types.ToolSchema{
			Name:        OpComputeTotal,
			Description: "Get the current order total.",
			Parameters:  types.NewObjectSchema("", map[string]*types.JSONSchema{}, nil),
		},
		category: CategoryQuery,
	},
	{
		schema: types.ToolSchema{
			Name:        OpLoadPaymentMethods,
			Description: "List the payment methods this store accepts. Call when the customer is done ordering.",
			Parameters:  types.NewObjectSchema("", map[string]*types.JSONSchema{}, nil),
		},
		category: CategoryPayment,
		event:    conversation.EventMethodsLoaded,
	},
	{
		schema: types.ToolSchema{
			Name:        OpProcessPayment,
			Description: "Take payment with one of the listed methods.",
			Parameters: types.NewObjectSchema("", map[string]*types.JSONSchema{
				"method": types.NewStringSchema("Payment method id or name from the listing"),
				"amount": types.NewNumberSchema("Amount tendered, default the order total").WithMinimum(0),
			}, []string{"method"}),
		},
		category: CategoryPayment,
		event:    conversation.EventPaymentProcessed,
	},
	{
		schema: types.ToolSchema{
			Name:        OpStartNewTransaction,
			Description: "Discard the current order and start a new one.",
			Parameters:  types.NewObjectSchema("", map[string]*types.JSONSchema{}, nil),
		},
		category: CategoryControl,
		event:    conversation.EventNewTransaction,
	},
}

// Schemas returns the operation schemas in a fixed order.
func Schemas() []types.ToolSchema {
	out := make([]types.ToolSchema, len(operations))
	for i, op := range operations {
		out[i] = op.schema
	}
	return out
}

// CategoryOf returns the category of a known operation.
func CategoryOf(name string) (Category, bool) {
	for _, op := range operations {
		if op.schema.Name == name {
			return op.category, true
		}
	}
	return "", false
}

func intPtr(v int) *int { return &v }
