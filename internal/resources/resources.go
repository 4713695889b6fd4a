// Package resources declares the ERP resources exposed under /api and embeds
// their fallback datasets.
package resources

import (
	"embed"

	"github.com/garyellow/erp-gateway-go/internal/gateway"
	"github.com/garyellow/erp-gateway-go/internal/seeds"
)

// SeedRoot is the directory inside SeedFS holding <module>/<name>.json files.
const SeedRoot = "seed"

//go:embed seed
var SeedFS embed.FS

// Opportunity stages accepted by the stage action.
var OpportunityStages = []string{"prospecting", "qualification", "proposal", "negotiation", "won", "lost"}

// Task statuses accepted by the status action.
var TaskStatuses = []string{"todo", "in_progress", "review", "done"}

// All returns every resource in registration order.
func All() []gateway.Resource {
	return []gateway.Resource{
		{
			Name:         "crm/leads",
			Path:         "/crm/leads",
			SearchFields: []string{"name", "company", "email", "status", "source"},
			Required:     []string{"name", "company"},
		},
		{
			Name:         "crm/accounts",
			Path:         "/crm/accounts",
			SearchFields: []string{"name", "industry", "country", "city"},
			Required:     []string{"name"},
		},
		{
			Name:         "crm/contacts",
			Path:         "/crm/contacts",
			SearchFields: []string{"firstName", "lastName", "email", "title"},
			Required:     []string{"lastName"},
		},
		{
			Name:         "crm/opportunities",
			Path:         "/crm/opportunities",
			SearchFields: []string{"name", "stage", "accountId"},
			Required:     []string{"name", "accountId"},
			Actions: []gateway.Action{
				{Name: "stage", Field: "stage", Allowed: OpportunityStages},
			},
		},
		{
			Name:         "crm/activities",
			Path:         "/crm/activities",
			SearchFields: []string{"type", "subject", "relatedTo", "status"},
			Required:     []string{"type", "subject"},
		},
		{
			Name:         "financials/invoices",
			Path:         "/financials/invoices",
			SearchFields: []string{"number", "customer", "status"},
			Required:     []string{"customer", "amount"},
		},
		{
			Name:         "financials/payments",
			Path:         "/financials/payments",
			SearchFields: []string{"invoiceId", "payer", "method", "status"},
			Required:     []string{"invoiceId", "amount"},
		},
		{
			Name:         "hcm/employees",
			Path:         "/hcm/employees",
			SearchFields: []string{"firstName", "lastName", "email", "department", "title"},
			Required:     []string{"firstName", "lastName"},
		},
		{
			Name:         "hcm/org-units",
			Path:         "/hcm/org-units",
			SearchFields: []string{"name"},
			Required:     []string{"name"},
			EchoWrites:   true,
		},
		{
			Name:         "materials/items",
			Path:         "/materials/items",
			SearchFields: []string{"sku", "name", "category", "warehouse"},
			Required:     []string{"sku", "name"},
		},
		{
			Name:         "materials/purchase-orders",
			Path:         "/materials/purchase-orders",
			SearchFields: []string{"supplier", "status"},
			Required:     []string{"supplier"},
		},
		{
			Name:         "sales/orders",
			Path:         "/sales/orders",
			SearchFields: []string{"customer", "status"},
			Required:     []string{"customer"},
		},
		{
			Name:         "quality/inspections",
			Path:         "/quality/inspections",
			SearchFields: []string{"lot", "itemId", "result"},
			Required:     []string{"lot", "itemId"},
			EchoWrites:   true,
		},
		{
			Name:         "maintenance/work-orders",
			Path:         "/maintenance/work-orders",
			SearchFields: []string{"asset", "description", "priority", "status"},
			Required:     []string{"asset", "description"},
		},
		{
			Name:         "projects/projects",
			Path:         "/projects",
			SearchFields: []string{"name", "status"},
			Required:     []string{"name"},
		},
		{
			Name:         "projects/tasks",
			Path:         "/projects/tasks",
			SearchFields: []string{"title", "projectId", "status"},
			Required:     []string{"title", "projectId"},
			Actions: []gateway.Action{
				{Name: "status", Field: "status", Allowed: TaskStatuses},
			},
		},
	}
}

// NewCatalog loads the embedded datasets.
func NewCatalog() (*seeds.Catalog, error) {
	return seeds.NewCatalog(SeedFS, SeedRoot)
}
