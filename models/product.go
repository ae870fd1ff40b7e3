package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MedicineForm string

const (
	FormTablet    MedicineForm = "Tablet"
	FormSyrup     MedicineForm = "Syrup"
	FormCapsule   MedicineForm = "Capsule"
	FormInjection MedicineForm = "Injection"
	FormOintment  MedicineForm = "Ointment"
)

type Category string

const (
	CategoryAntibiotic       Category = "Antibiotic"
	CategoryPainkiller       Category = "Painkiller"
	CategoryAntacid          Category = "Antacid"
	CategoryAntiseptic       Category = "Antiseptic"
	CategoryAntiviral        Category = "Antiviral"
	CategoryAntifungal       Category = "Antifungal"
	CategoryAntiInflammatory Category = "Anti-inflammatory"
	CategoryAllergyRelief    Category = "Allergy Relief"
	CategoryCoughCold        Category = "Cough & Cold"
	CategoryDiabetes         Category = "Diabetes"
	CategoryBloodPressure    Category = "Blood Pressure"
	CategoryHeartHealth      Category = "Heart Health"
	CategoryDigestiveHealth  Category = "Digestive Health"
)

// DefaultProductImage is used when a product is created without an image.
const DefaultProductImage = "https://iili.io/35DtmLF.webp"

// Product is a medicine in the catalog. Quantity is the available stock and
// is only changed through the inventory ledger once orders exist.
type Product struct {
	ID                   uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name                 string          `gorm:"not null;index" json:"name"`
	Image                string          `gorm:"not null" json:"image"`
	Brand                string          `gorm:"not null;index" json:"brand"`
	Price                decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Form                 MedicineForm    `gorm:"type:varchar(20);not null" json:"form"`
	Category             Category        `gorm:"type:varchar(40);not null;index" json:"category"`
	Symptoms             []string        `gorm:"serializer:json" json:"symptoms"`
	Description          string          `json:"description"`
	Quantity             int             `gorm:"not null;check:quantity >= 0" json:"quantity"`
	PrescriptionRequired bool            `gorm:"not null;default:false" json:"prescriptionRequired"`
	Manufacturer         string          `json:"manufacturer"`
	ExpiryDate           string          `json:"expiryDate"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt            gorm.DeletedAt  `gorm:"index" json:"-"`
}

type CreateProductRequest struct {
	Name                 string          `json:"name" binding:"required"`
	Image                string          `json:"image" binding:"omitempty,url"`
	Brand                string          `json:"brand" binding:"required"`
	Price                decimal.Decimal `json:"price"`
	Form                 MedicineForm    `json:"form" binding:"required,oneof=Tablet Syrup Capsule Injection Ointment"`
	Category             Category        `json:"category" binding:"required"`
	Symptoms             []string        `json:"symptoms" binding:"required"`
	Description          string          `json:"description" binding:"required"`
	Quantity             *int            `json:"quantity" binding:"required,min=0"`
	PrescriptionRequired *bool           `json:"prescriptionRequired" binding:"required"`
	Manufacturer         string          `json:"manufacturer" binding:"required"`
	ExpiryDate           string          `json:"expiryDate" binding:"required"`
}

// UpdateProductRequest is a partial update; nil fields are left unchanged.
type UpdateProductRequest struct {
	Name                 *string          `json:"name"`
	Image                *string          `json:"image" binding:"omitempty,url"`
	Brand                *string          `json:"brand"`
	Price                *decimal.Decimal `json:"price"`
	Form                 *MedicineForm    `json:"form" binding:"omitempty,oneof=Tablet Syrup Capsule Injection Ointment"`
	Category             *Category        `json:"category"`
	Symptoms             []string         `json:"symptoms"`
	Description          *string          `json:"description"`
	Quantity             *int             `json:"quantity" binding:"omitempty,min=0"`
	PrescriptionRequired *bool            `json:"prescriptionRequired"`
	Manufacturer         *string          `json:"manufacturer"`
	ExpiryDate           *string          `json:"expiryDate"`
}

// ProductQuery is the parsed catalog list query.
type ProductQuery struct {
	SearchTerm           string
	Category             string
	Form                 string
	Brand                string
	PrescriptionRequired *bool
	MinPrice             *decimal.Decimal
	MaxPrice             *decimal.Decimal
	Sort                 string
	Fields               string
	Page                 int
	Limit                int
}

var categories = map[Category]struct{}{
	CategoryAntibiotic: {}, CategoryPainkiller: {}, CategoryAntacid: {}, CategoryAntiseptic: {},
	CategoryAntiviral: {}, CategoryAntifungal: {}, CategoryAntiInflammatory: {}, CategoryAllergyRelief: {},
	CategoryCoughCold: {}, CategoryDiabetes: {}, CategoryBloodPressure: {}, CategoryHeartHealth: {},
	CategoryDigestiveHealth: {},
}

// Valid reports whether c is one of the catalog categories.
func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}
