package persistence

import (
	"time"

	"gorm.io/datatypes"
)

// FitModel represents a stored fit in the database.
type FitModel struct {
	ID          int64          `gorm:"primaryKey;autoIncrement"`
	Name        string         `gorm:"column:name;index;size:255"`
	DatasetPath string         `gorm:"column:dataset_path;index;size:1024"`
	ChiSquare   float64        `gorm:"column:chi_square"`
	Pixels      int            `gorm:"column:pixels"`
	Params      int            `gorm:"column:params"`
	Absorbers   int            `gorm:"column:absorbers"`
	Document    datatypes.JSON `gorm:"column:document"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at"`
}

// TableName returns the table name.
func (FitModel) TableName() string {
	return "fits"
}

// ResultModel represents one sweep record in the database.
type ResultModel struct {
	ID        int64                       `gorm:"primaryKey;autoIncrement"`
	RunID     string                      `gorm:"column:run_id;index;size:64"`
	Job       string                      `gorm:"column:job;index;size:255"`
	ChiSquare float64                     `gorm:"column:chi_square"`
	Columns   datatypes.JSONSlice[string] `gorm:"column:header"`
	Values    datatypes.JSONSlice[string] `gorm:"column:cells"`
	CreatedAt time.Time                   `gorm:"column:created_at"`
}

// TableName returns the table name.
func (ResultModel) TableName() string {
	return "sweep_results"
}

// paramDocument is the stored form of one fittable attribute.
type paramDocument struct {
	Value  float64 `json:"value"`
	Locked bool    `json:"locked,omitempty"`
	Error  float64 `json:"error,omitempty"`
}

type absorberDocument struct {
	ID  string        `json:"id"`
	Ion string        `json:"ion"`
	N   paramDocument `json:"N"`
	B   paramDocument `json:"b"`
	Z   paramDocument `json:"z"`
}

type continuumDocument struct {
	ID string        `json:"id"`
	X  paramDocument `json:"x"`
	Y  paramDocument `json:"y"`
}

type regionDocument struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type auxiliaryAttrDocument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type auxiliaryDocument struct {
	Name  string                  `json:"name"`
	Attrs []auxiliaryAttrDocument `json:"attrs,omitempty"`
	Inner string                  `json:"inner,omitempty"`
}

// fitDocument is the JSON body of a FitModel.
type fitDocument struct {
	Absorbers []absorberDocument  `json:"absorbers"`
	Continuum []continuumDocument `json:"continuum"`
	Regions   []regionDocument    `json:"regions"`
	Auxiliary []auxiliaryDocument `json:"auxiliary,omitempty"`
}
