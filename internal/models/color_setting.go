package models

// ColorSetting persists one metric's {high, low} threshold pair.
type ColorSetting struct {
	Field string  `gorm:"primaryKey;size:64"`
	High  float64 `gorm:"not null"`
	Low   float64 `gorm:"not null"`
}
