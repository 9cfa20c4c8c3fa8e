package domain

// Known business collections and their curated field catalogs. Owners can
// grant a collection by name and receive this stock shape instead of listing
// every field by hand. Unknown collection names resolve to nothing.
var collectionCatalog = map[string][]string{
	"finance_transactions": {
		"id", "date", "amount", "currency", "type", "category", "description",
		"vendor", "account", "status", "department", "project_code",
		"created_at", "updated_at",
	},
	"finance_budgets": {
		"id", "department", "category", "allocated_amount", "spent_amount",
		"period", "fiscal_year", "created_at", "updated_at",
	},
	"sales_deals": {
		"id", "name", "company", "value", "currency", "stage", "probability",
		"expected_close_date", "actual_close_date", "owner", "source",
		"industry", "region", "created_at", "updated_at",
	},
	"sales_customers": {
		"id", "name", "company", "email", "phone", "industry", "region",
		"annual_revenue", "employee_count", "status", "first_contact_date",
		"created_at", "updated_at",
	},
	"hr_employees": {
		"id", "name", "email", "phone", "department", "role", "title",
		"manager_id", "hire_date", "employment_type", "salary", "currency",
		"location", "status", "skills", "created_at", "updated_at",
	},
}

// DefaultGrant returns the stock grant for a known collection with all
// catalog fields exposed and filterable. The second return is false for
// collections outside the catalog.
func DefaultGrant(collection string) (CollectionGrant, bool) {
	fields, ok := collectionCatalog[collection]
	if !ok {
		return CollectionGrant{}, false
	}
	g := CollectionGrant{
		Collection:   collection,
		Fields:       append([]string(nil), fields...),
		FilterFields: append([]string(nil), fields...),
	}
	return g, true
}

// KnownCollections lists the catalog's collection names.
func KnownCollections() []string {
	names := make([]string, 0, len(collectionCatalog))
	for name := range collectionCatalog {
		names = append(names, name)
	}
	return names
}
