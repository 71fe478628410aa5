package shared

// Permission names granted to roles.
const (
	PermUsersView       = "users.view"
	PermUsersEdit       = "users.edit"
	PermRolesView       = "roles.view"
	PermRolesEdit       = "roles.edit"
	PermPermissionsView = "permissions.view"

	PermCustomerView  = "master.customer.view"
	PermCustomerEdit  = "master.customer.edit"
	PermVendorView    = "master.vendor.view"
	PermVendorEdit    = "master.vendor.edit"
	PermWarehouseView = "master.warehouse.view"
	PermWarehouseEdit = "master.warehouse.edit"

	PermInventoryView   = "inventory.view"
	PermInventoryEdit   = "inventory.edit"
	PermInventoryPost   = "inventory.post"
	PermInventoryExport = "inventory.export"

	PermSalesOrderView      = "sales.order.view"
	PermSalesOrderCreate    = "sales.order.create"
	PermSalesOrderEdit      = "sales.order.edit"
	PermSalesOrderStatus    = "sales.order.status"
	PermPurchaseOrderView   = "purchase.order.view"
	PermPurchaseOrderCreate = "purchase.order.create"
	PermPurchaseOrderEdit   = "purchase.order.edit"
	PermPurchaseOrderStatus = "purchase.order.status"

	PermQuotationView    = "sales.quotation.view"
	PermQuotationCreate  = "sales.quotation.create"
	PermQuotationEdit    = "sales.quotation.edit"
	PermQuotationSend    = "sales.quotation.send"
	PermQuotationApprove = "sales.quotation.approve"
	PermQuotationConvert = "sales.quotation.convert"

	PermPurchaseRequestView    = "procurement.request.view"
	PermPurchaseRequestCreate  = "procurement.request.create"
	PermPurchaseRequestApprove = "procurement.request.approve"
	PermPurchaseRequestConvert = "procurement.request.convert"

	PermDashboardView = "dashboard.view"
	PermJobsView      = "jobs.view"
)

// PermissionInfo pairs a permission with its description.
type PermissionInfo struct {
	Name        string
	Description string
}

// PermissionCatalogue lists every permission the application checks.
func PermissionCatalogue() []PermissionInfo {
	return []PermissionInfo{
		{PermUsersView, "View users"},
		{PermUsersEdit, "Manage users"},
		{PermRolesView, "View roles"},
		{PermRolesEdit, "Manage roles"},
		{PermPermissionsView, "View permissions"},
		{PermCustomerView, "View customers"},
		{PermCustomerEdit, "Manage customers"},
		{PermVendorView, "View vendors"},
		{PermVendorEdit, "Manage vendors"},
		{PermWarehouseView, "View warehouses"},
		{PermWarehouseEdit, "Manage warehouses"},
		{PermInventoryView, "View items and stock"},
		{PermInventoryEdit, "Manage items"},
		{PermInventoryPost, "Post stock receipts and issues"},
		{PermInventoryExport, "Export stock workbook"},
		{PermSalesOrderView, "View sales orders"},
		{PermSalesOrderCreate, "Create sales orders"},
		{PermSalesOrderEdit, "Edit sales order lines"},
		{PermSalesOrderStatus, "Change sales order status"},
		{PermPurchaseOrderView, "View purchase orders"},
		{PermPurchaseOrderCreate, "Create purchase orders"},
		{PermPurchaseOrderEdit, "Edit purchase order lines"},
		{PermPurchaseOrderStatus, "Change purchase order status"},
		{PermQuotationView, "View quotations"},
		{PermQuotationCreate, "Create quotations"},
		{PermQuotationEdit, "Edit quotations"},
		{PermQuotationSend, "Email quotations to customers"},
		{PermQuotationApprove, "Accept or reject quotations"},
		{PermQuotationConvert, "Convert quotations to sales orders"},
		{PermPurchaseRequestView, "View purchase requests"},
		{PermPurchaseRequestCreate, "Create and submit purchase requests"},
		{PermPurchaseRequestApprove, "Approve or reject purchase requests"},
		{PermPurchaseRequestConvert, "Convert purchase requests to purchase orders"},
		{PermDashboardView, "View dashboard"},
		{PermJobsView, "View background job health"},
	}
}

// AllPermissions returns the catalogue names only.
func AllPermissions() []string {
	catalogue := PermissionCatalogue()
	names := make([]string, 0, len(catalogue))
	for _, p := range catalogue {
		names = append(names, p.Name)
	}
	return names
}
