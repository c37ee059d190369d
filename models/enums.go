package models

import (
	"github.com/mmdatafocus/jewel_backend/utils"
	"github.com/shopspring/decimal"
)

type MetalType string

const (
	MetalGold   MetalType = "GOLD"
	MetalSilver MetalType = "SILVER"
)

func (m MetalType) IsValid() bool {
	return m == MetalGold || m == MetalSilver
}

// barcode prefix per metal
var metalPrefixes = map[MetalType]string{
	MetalGold:   "G",
	MetalSilver: "S",
}

type StockType string

const (
	StockSingle StockType = "SINGLE"
	StockBulk   StockType = "BULK"
	StockRaw    StockType = "RAW"
)

func (s StockType) IsValid() bool {
	return s == StockSingle || s == StockBulk || s == StockRaw
}

// tracksQuantity reports whether weight and quantity are decremented per sale
// instead of flipping the whole item to SOLD.
func (s StockType) tracksQuantity() bool {
	return s == StockBulk
}

type ItemStatus string

const (
	ItemAvailable ItemStatus = "AVAILABLE"
	ItemSold      ItemStatus = "SOLD"
	ItemDeleted   ItemStatus = "DELETED"
)

type ItemSource string

const (
	SourceOwn       ItemSource = "OWN"
	SourceVendor    ItemSource = "VENDOR"
	SourceNeighbour ItemSource = "NEIGHBOUR"
	SourceRefinery  ItemSource = "REFINERY"
)

type SaleStatus string

const (
	SalePartial SaleStatus = "PARTIAL"
	SalePaid    SaleStatus = "PAID"
)

type PaymentMode string

const (
	PaymentCash         PaymentMode = "CASH"
	PaymentCard         PaymentMode = "CARD"
	PaymentUPI          PaymentMode = "UPI"
	PaymentBankTransfer PaymentMode = "BANK_TRANSFER"
)

type RestoreMode string

const (
	RestoreDefault       RestoreMode = "DEFAULT"
	RestoreTakeOwnership RestoreMode = "TAKE_OWNERSHIP"
)

type ShopTransactionType string

const (
	ShopBorrowAdd   ShopTransactionType = "BORROW_ADD"
	ShopBorrowRepay ShopTransactionType = "BORROW_REPAY"
	ShopLendAdd     ShopTransactionType = "LEND_ADD"
	ShopLendCollect ShopTransactionType = "LEND_COLLECT"
)

type VendorTransactionType string

const (
	VendorStockAdded      VendorTransactionType = "STOCK_ADDED"
	VendorStockUpdate     VendorTransactionType = "STOCK_UPDATE"
	VendorRepayment       VendorTransactionType = "REPAYMENT"
	VendorRefineryPayment VendorTransactionType = "REFINERY_PAYMENT"
)

type ChitType string

const (
	ChitAmount ChitType = "AMOUNT"
	ChitGold   ChitType = "GOLD"
)

type ChitStatus string

const (
	ChitActive ChitStatus = "ACTIVE"
	ChitClosed ChitStatus = "CLOSED"
)

type RefineryStatus string

const (
	RefinerySent      RefineryStatus = "SENT"
	RefineryRefined   RefineryStatus = "REFINED"
	RefineryCompleted RefineryStatus = "COMPLETED"
)

type RefineryUsageMode string

const (
	UsageVendorPayment RefineryUsageMode = "VENDOR_PAYMENT"
	UsageInventory     RefineryUsageMode = "INVENTORY"
)

type OldMetalSource string

const (
	OldMetalExchange OldMetalSource = "EXCHANGE"
	OldMetalDirect   OldMetalSource = "DIRECT"
)

type OldMetalStatus string

const (
	OldMetalInStock        OldMetalStatus = "IN_STOCK"
	OldMetalSentToRefinery OldMetalStatus = "SENT_TO_REFINERY"
)

type StockLogAction string

const (
	StockLogAdd     StockLogAction = "ADD"
	StockLogSale    StockLogAction = "SALE"
	StockLogReturn  StockLogAction = "RETURN"
	StockLogRestock StockLogAction = "RESTOCK"
	StockLogUpdate  StockLogAction = "UPDATE"
	StockLogDelete  StockLogAction = "DELETE"
	StockLogRestore StockLogAction = "RESTORE"
)

// reference types shared by vendor, shop and stock ledgers
const (
	RefSale          = "SALE"
	RefItem          = "ITEM"
	RefRefineryBatch = "REFINERY_BATCH"
	RefVendor        = "VENDOR"
	RefManual        = "MANUAL"
)

var (
	// below this a bulk item's weight counts as exhausted
	weightEpsilon = decimal.NewFromFloat(0.01)
	// a sale with balance at or below this is PAID
	paidThreshold = decimal.NewFromFloat(0.1)
	// allowed drift between client and server net payable
	netPayableTolerance = decimal.NewFromInt(2)
	// refinery usage slack
	refineryTolerance = decimal.NewFromFloat(0.01)

	hundred = decimal.NewFromInt(100)
	ten     = decimal.NewFromInt(10)
)

func validateMetal(m MetalType) error {
	if !m.IsValid() {
		return utils.ValidationError("unknown metal type %q", m)
	}
	return nil
}
