package database

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/kuncy7/toolid/pkg/models"
)

func TestMarshalJSONColumn(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		empty string
		want  string
	}{
		{"nil map", nil, "{}", "{}"},
		{"typed nil map", map[string]interface{}(nil), "{}", "{}"},
		{"nil slice", []interface{}(nil), "[]", "[]"},
		{"map", map[string]interface{}{"url": "http://x"}, "{}", `{"url":"http://x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := marshalJSONColumn(tt.value, tt.empty)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestIntegrationLifecycle(t *testing.T) {
	dm := setupTestDatabaseManager(t)
	if dm == nil {
		t.Skip("Skipping test that requires real database connection")
	}
	defer dm.Close()

	ctx := context.Background()

	integration, err := dm.CreateIntegration(ctx, "ERP", "rest", map[string]interface{}{"url": "http://erp.local"})
	if err != nil {
		t.Fatalf("Failed to create integration: %v", err)
	}
	if !integration.IsActive || integration.Config["url"] != "http://erp.local" {
		t.Errorf("Unexpected integration: %+v", integration)
	}

	inactive := false
	updated, err := dm.UpdateIntegration(ctx, integration.ID, models.IntegrationUpdate{IsActive: &inactive})
	if err != nil {
		t.Fatalf("Failed to update integration: %v", err)
	}
	if updated.IsActive || updated.Name != "ERP" {
		t.Errorf("Unexpected updated integration: %+v", updated)
	}

	if _, err := dm.AddIntegrationLog(ctx, integration.ID, "test", "success", "Connection successful"); err != nil {
		t.Fatalf("Failed to add log: %v", err)
	}

	logs, err := dm.ListIntegrationLogs(ctx, integration.ID)
	if err != nil || len(logs) != 1 {
		t.Fatalf("Expected 1 log, got %d (%v)", len(logs), err)
	}

	if err := dm.DeleteIntegration(ctx, integration.ID); err != nil {
		t.Fatalf("Failed to delete integration: %v", err)
	}
	if _, err := dm.GetIntegration(ctx, integration.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if _, err := dm.ListIntegrationLogs(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown integration, got %v", err)
	}
}

func TestWarehouse(t *testing.T) {
	dm := setupTestDatabaseManager(t)
	if dm == nil {
		t.Skip("Skipping test that requires real database connection")
	}
	defer dm.Close()

	ctx := context.Background()

	cfg, err := dm.GetWarehouseConfig(ctx)
	if err != nil || cfg != nil {
		t.Fatalf("Expected no warehouse config, got %+v (%v)", cfg, err)
	}

	first, err := dm.SaveWarehouseConfig(ctx, "subiekt", map[string]interface{}{"branch": "A"})
	if err != nil {
		t.Fatalf("Failed to save warehouse config: %v", err)
	}
	second, err := dm.SaveWarehouseConfig(ctx, "optima", nil)
	if err != nil {
		t.Fatalf("Failed to save warehouse config: %v", err)
	}
	if first.ID != second.ID {
		t.Error("Expected warehouse config to stay a single row")
	}

	order, err := dm.CreateToolOrder(ctx, nil, []interface{}{map[string]interface{}{"sku": "X1", "qty": 2.0}})
	if err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}
	if order.Status != "pending" {
		t.Errorf("Expected pending order, got %s", order.Status)
	}

	orders, err := dm.ListToolOrders(ctx)
	if err != nil || len(orders) != 1 || len(orders[0].Items) != 1 {
		t.Fatalf("Unexpected orders: %+v (%v)", orders, err)
	}

	tool, err := dm.CreateTool(ctx, models.ToolCreate{Name: "Szczypce"})
	if err != nil {
		t.Fatalf("Failed to create tool: %v", err)
	}

	mapping, err := dm.CreateToolMapping(ctx, "EXT-1", tool.ID)
	if err != nil {
		t.Fatalf("Failed to create mapping: %v", err)
	}
	if _, err := dm.CreateToolMapping(ctx, "EXT-1", tool.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected duplicate mapping to be forbidden, got %v", err)
	}
	if _, err := dm.CreateToolMapping(ctx, "EXT-2", tool.ID+1000); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected unknown tool to be not found, got %v", err)
	}

	if err := dm.DeleteToolMapping(ctx, mapping.ID); err != nil {
		t.Fatalf("Failed to delete mapping: %v", err)
	}
	mappings, err := dm.ListToolMappings(ctx)
	if err != nil || len(mappings) != 0 {
		t.Errorf("Expected no mappings, got %d (%v)", len(mappings), err)
	}
}
