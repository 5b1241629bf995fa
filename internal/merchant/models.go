package merchant

import "time"

// Merchant is a platform merchant allowed to call the provider's profit-share API.
type Merchant struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	MchID         string    `gorm:"size:32;uniqueIndex;not null" json:"mchid"`
	AppID         string    `gorm:"size:64" json:"appid"`
	Name          string    `gorm:"size:128" json:"name"`
	CertSerialNo  string    `gorm:"size:64" json:"cert_serial_no"`
	PrivateKeyPEM string    `gorm:"type:text" json:"-"`
	Enabled       bool      `gorm:"not null;default:true" json:"enabled"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Merchant) TableName() string { return "merchants" }

// RegisterRequest is the payload accepted by the merchant registration endpoint.
type RegisterRequest struct {
	MchID         string `json:"mchid" binding:"required,max=32"`
	AppID         string `json:"appid" binding:"max=64"`
	Name          string `json:"name" binding:"max=128"`
	CertSerialNo  string `json:"cert_serial_no" binding:"required"`
	PrivateKeyPEM string `json:"private_key_pem" binding:"required"`
}
