package shared

import appshared "github.com/odyssey-erp/odyssey-smb/internal/shared"

// ListFilters represents standard list page filters
type ListFilters struct {
	appshared.ListFilter
	IsActive *bool
}
