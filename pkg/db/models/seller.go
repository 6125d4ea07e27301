package models

import "time"

// Seller is the directory entry used to display store names next to sub-orders.
type Seller struct {
	ID        string    `gorm:"column:id;type:text;primaryKey"`
	StoreName string    `gorm:"column:store_name;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Seller) TableName() string { return "sellers" }
