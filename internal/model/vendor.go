package model

import "time"

// VendorModel 供应商
type VendorModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	TaxID     string    `gorm:"type:varchar(32)" json:"tax_id,omitempty"`
	Contact   string    `gorm:"type:varchar(255)" json:"contact,omitempty"`
	Phone     string    `gorm:"type:varchar(32)" json:"phone,omitempty"`
	Email     string    `gorm:"type:varchar(255)" json:"email,omitempty"`
	Address   string    `gorm:"type:text" json:"address,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created"`
	UpdatedAt time.Time `gorm:"not null" json:"updated"`
}

// TableName 指定表名
func (VendorModel) TableName() string {
	return "vendors"
}
