// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/toolchain/services/chain/datatypes"
)

//go:embed business_data.yaml
var defaultBusinessDataYAML []byte

// MaxBusinessDataSize caps external dataset files (1MB).
const MaxBusinessDataSize = 1024 * 1024

// BusinessData is the realistic mock dataset behind the chain tools.
//
// Description:
//
//	The records form an eight-step lookup chain used to probe how
//	deep a model can follow tool results before losing track:
//	email → user → order → product → supplier → contact → territory
//	→ manager. Realistic identifiers avoid pattern detection.
type BusinessData struct {
	Users        map[string]UserRecord      `yaml:"users"`
	Orders       map[string][]OrderSummary  `yaml:"orders"`
	OrderDetails map[string]OrderDetail     `yaml:"order_details"`
	Inventory    map[string]InventoryRecord `yaml:"inventory"`
	Suppliers    map[string]SupplierRecord  `yaml:"suppliers"`
	Contacts     map[string]ContactRecord   `yaml:"contacts"`
	Territories  map[string]TerritoryRecord `yaml:"territories"`
	Managers     map[string]ManagerRecord   `yaml:"managers"`
}

// UserRecord is one user account.
type UserRecord struct {
	UserID        string `yaml:"user_id" json:"user_id"`
	Name          string `yaml:"name" json:"name"`
	AccountType   string `yaml:"account_type" json:"account_type"`
	CustomerSince string `yaml:"customer_since" json:"customer_since"`
}

// OrderSummary is one order line in a user's order list.
type OrderSummary struct {
	OrderID string  `yaml:"order_id" json:"order_id"`
	Date    string  `yaml:"date" json:"date"`
	Total   float64 `yaml:"total" json:"total"`
	Status  string  `yaml:"status" json:"status"`
}

// OrderItem is one item within an order.
type OrderItem struct {
	ProductID string  `yaml:"product_id" json:"product_id"`
	Name      string  `yaml:"name" json:"name"`
	Quantity  int     `yaml:"quantity" json:"quantity"`
	Price     float64 `yaml:"price" json:"price"`
}

// OrderDetail is the full record for one order.
type OrderDetail struct {
	Items           []OrderItem `yaml:"items" json:"items"`
	ShippingAddress string      `yaml:"shipping_address" json:"shipping_address"`
	WarehouseID     string      `yaml:"warehouse_id" json:"warehouse_id"`
}

// InventoryRecord is stock state for one product.
type InventoryRecord struct {
	Stock        int    `yaml:"stock" json:"stock"`
	SupplierID   string `yaml:"supplier_id" json:"supplier_id"`
	ReorderPoint int    `yaml:"reorder_point" json:"reorder_point"`
}

// SupplierRecord is one supplier.
type SupplierRecord struct {
	Name         string  `yaml:"name" json:"name"`
	ContactID    string  `yaml:"contact_id" json:"contact_id"`
	LeadTimeDays int     `yaml:"lead_time_days" json:"lead_time_days"`
	Rating       float64 `yaml:"rating" json:"rating"`
}

// ContactRecord is one supplier contact person.
type ContactRecord struct {
	Name        string `yaml:"name" json:"name"`
	Email       string `yaml:"email" json:"email"`
	Phone       string `yaml:"phone" json:"phone"`
	TerritoryID string `yaml:"territory_id" json:"territory_id"`
}

// TerritoryRecord is one sales territory.
type TerritoryRecord struct {
	Name      string   `yaml:"name" json:"name"`
	ManagerID string   `yaml:"manager_id" json:"manager_id"`
	Coverage  []string `yaml:"coverage" json:"coverage"`
}

// ManagerRecord is one territory manager.
type ManagerRecord struct {
	Name         string `yaml:"name" json:"name"`
	Title        string `yaml:"title" json:"title"`
	DepartmentID string `yaml:"department_id" json:"department_id"`
}

// LoadBusinessData parses the embedded default dataset.
//
// Outputs:
//
//	*BusinessData - The parsed dataset.
//	error - Non-nil if the embedded YAML is corrupt (a build defect).
func LoadBusinessData() (*BusinessData, error) {
	return ParseBusinessData(defaultBusinessDataYAML)
}

// ParseBusinessData parses a dataset from YAML bytes.
//
// Inputs:
//
//	data - YAML payload, at most MaxBusinessDataSize bytes.
func ParseBusinessData(data []byte) (*BusinessData, error) {
	if len(data) > MaxBusinessDataSize {
		return nil, fmt.Errorf("ParseBusinessData: dataset too large: %d bytes (max %d)",
			len(data), MaxBusinessDataSize)
	}

	var bd BusinessData
	if err := yaml.Unmarshal(data, &bd); err != nil {
		return nil, fmt.Errorf("ParseBusinessData: unmarshaling dataset: %w", err)
	}
	return &bd, nil
}

// notFound is the payload shape the chain models already understand
// for a miss; a miss is data, not a tool failure.
func notFound(what string) map[string]string {
	return map[string]string{"error": what + " not found"}
}

// RegisterBusinessTools registers the eight chain tools on a registry.
//
// Description:
//
//	Each tool resolves one step of the lookup chain against the
//	injected dataset. Misses return an error-shaped payload as a
//	successful result so the model can recover mid-chain.
//
// Inputs:
//
//	reg - The registry to populate.
//	data - The dataset the handlers close over.
//
// Outputs:
//
//	error - Non-nil if any registration fails (duplicate names).
func RegisterBusinessTools(reg *Registry, data *BusinessData) error {
	stringParam := func(name, desc string) map[string]datatypes.PropertySchema {
		return map[string]datatypes.PropertySchema{
			name: {Type: "string", Description: desc},
		}
	}

	handlers := []Handler{
		NewHandler(
			datatypes.NewFunctionSchema("lookup_user",
				"Find user account by email address",
				stringParam("email", "User's email address"), "email"),
			func(_ context.Context, call datatypes.ToolCall) (any, error) {
				if u, ok := data.Users[call.StringArg("email")]; ok {
					return u, nil
				}
				return notFound("User"), nil
			}),
		NewHandler(
			datatypes.NewFunctionSchema("get_user_orders",
				"Get all orders for a user",
				stringParam("user_id", "User ID from lookup_user"), "user_id"),
			func(_ context.Context, call datatypes.ToolCall) (any, error) {
				orders := data.Orders[call.StringArg("user_id")]
				if orders == nil {
					return []OrderSummary{}, nil
				}
				return orders, nil
			}),
		NewHandler(
			datatypes.NewFunctionSchema("get_order_details",
				"Get detailed information about an order",
				stringParam("order_id", "Order ID from get_user_orders"), "order_id"),
			func(_ context.Context, call datatypes.ToolCall) (any, error) {
				if d, ok := data.OrderDetails[call.StringArg("order_id")]; ok {
					return d, nil
				}
				return notFound("Order"), nil
			}),
		NewHandler(
			datatypes.NewFunctionSchema("check_inventory",
				"Check inventory levels for a product",
				stringParam("product_id", "Product ID from order details"), "product_id"),
			func(_ context.Context, call datatypes.ToolCall) (any, error) {
				if inv, ok := data.Inventory[call.StringArg("product_id")]; ok {
					return inv, nil
				}
				return notFound("Product"), nil
			}),
		NewHandler(
			datatypes.NewFunctionSchema("get_supplier_info",
				"Get information about a supplier",
				stringParam("supplier_id", "Supplier ID from inventory"), "supplier_id"),
			func(_ context.Context, call datatypes.ToolCall) (any, error) {
				if s, ok := data.Suppliers[call.StringArg("supplier_id")]; ok {
					return s, nil
				}
				return notFound("Supplier"), nil
			}),
		NewHandler(
			datatypes.NewFunctionSchema("get_contact_details",
				"Get contact person details for a supplier",
				stringParam("contact_id", "Contact ID from supplier info"), "contact_id"),
			func(_ context.Context, call datatypes.ToolCall) (any, error) {
				if c, ok := data.Contacts[call.StringArg("contact_id")]; ok {
					return c, nil
				}
				return notFound("Contact"), nil
			}),
		NewHandler(
			datatypes.NewFunctionSchema("get_territory_info",
				"Get information about a sales territory",
				stringParam("territory_id", "Territory ID from contact details"), "territory_id"),
			func(_ context.Context, call datatypes.ToolCall) (any, error) {
				if t, ok := data.Territories[call.StringArg("territory_id")]; ok {
					return t, nil
				}
				return notFound("Territory"), nil
			}),
		NewHandler(
			datatypes.NewFunctionSchema("get_manager_info",
				"Get information about a territory manager",
				stringParam("manager_id", "Manager ID from territory info"), "manager_id"),
			func(_ context.Context, call datatypes.ToolCall) (any, error) {
				if m, ok := data.Managers[call.StringArg("manager_id")]; ok {
					return m, nil
				}
				return notFound("Manager"), nil
			}),
	}

	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			return fmt.Errorf("RegisterBusinessTools: %w", err)
		}
	}
	return nil
}
