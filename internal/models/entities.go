package models

import "time"

// Local mirror of the domain entities tracked by the mobile app. Column names
// stay snake_case to match the remote schema so a downloaded row's JSON payload
// maps onto the local table without translation.

// Trip is a recorded journey with its reimbursement valuation.
type Trip struct {
	ID                  string     `gorm:"column:id;primaryKey" json:"id"`
	UserID              string     `gorm:"column:user_id;index" json:"user_id"`
	VehicleID           *string    `gorm:"column:vehicle_id;index" json:"vehicle_id"`
	StartedAt           time.Time  `gorm:"column:started_at" json:"started_at"`
	EndedAt             *time.Time `gorm:"column:ended_at" json:"ended_at"`
	DistanceMeters      float64    `gorm:"column:distance_meters" json:"distance_meters"`
	StartAddress        string     `gorm:"column:start_address" json:"start_address"`
	EndAddress          string     `gorm:"column:end_address" json:"end_address"`
	Purpose             string     `gorm:"column:purpose" json:"purpose"`
	IsBusiness          bool       `gorm:"column:is_business" json:"is_business"`
	ReimbursementAmount float64    `gorm:"column:reimbursement_amount" json:"reimbursement_amount"`
	SyncFields
}

func (Trip) TableName() string {
	return "trips"
}

// Vehicle is a user's vehicle used for mileage valuation.
type Vehicle struct {
	ID             string  `gorm:"column:id;primaryKey" json:"id"`
	UserID         string  `gorm:"column:user_id;index" json:"user_id"`
	Name           string  `gorm:"column:name" json:"name"`
	Plate          string  `gorm:"column:plate" json:"plate"`
	FiscalPower    int     `gorm:"column:fiscal_power" json:"fiscal_power"`
	OdometerKm     float64 `gorm:"column:odometer_km" json:"odometer_km"`
	IsDefault      bool    `gorm:"column:is_default" json:"is_default"`
	ElectricEngine bool    `gorm:"column:electric_engine" json:"electric_engine"`
	SyncFields
}

func (Vehicle) TableName() string {
	return "vehicles"
}

// Expense is a captured out-of-pocket expense, optionally attached to a trip.
type Expense struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	UserID     string    `gorm:"column:user_id;index" json:"user_id"`
	TripID     *string   `gorm:"column:trip_id;index" json:"trip_id"`
	Amount     float64   `gorm:"column:amount" json:"amount"`
	Currency   string    `gorm:"column:currency" json:"currency"`
	Category   string    `gorm:"column:category" json:"category"`
	ReceiptURL *string   `gorm:"column:receipt_url" json:"receipt_url"`
	IncurredAt time.Time `gorm:"column:incurred_at" json:"incurred_at"`
	SyncFields
}

func (Expense) TableName() string {
	return "expenses"
}

// WorkSchedule is a weekly auto-tracking window.
type WorkSchedule struct {
	ID          string `gorm:"column:id;primaryKey" json:"id"`
	UserID      string `gorm:"column:user_id;index" json:"user_id"`
	Weekday     int    `gorm:"column:weekday" json:"weekday"`
	StartMinute int    `gorm:"column:start_minute" json:"start_minute"`
	EndMinute   int    `gorm:"column:end_minute" json:"end_minute"`
	AutoTrack   bool   `gorm:"column:auto_track" json:"auto_track"`
	SyncFields
}

func (WorkSchedule) TableName() string {
	return "work_schedules"
}

// CompanyLink relates a collaborator to a Pro tenant and carries the sharing
// scopes gating what the tenant may read. Authorization only, independent of
// license state.
type CompanyLink struct {
	ID                string `gorm:"column:id;primaryKey" json:"id"`
	UserID            string `gorm:"column:user_id;index" json:"user_id"`
	ProAccountID      string `gorm:"column:pro_account_id;index" json:"pro_account_id"`
	ShareTrips        bool   `gorm:"column:share_trips" json:"share_trips"`
	ShareExpenses     bool   `gorm:"column:share_expenses" json:"share_expenses"`
	ShareVehicleInfo  bool   `gorm:"column:share_vehicle_info" json:"share_vehicle_info"`
	SharePersonalInfo bool   `gorm:"column:share_personal_info" json:"share_personal_info"`
	SyncFields
}

func (CompanyLink) TableName() string {
	return "company_links"
}

// CachedUser is the local projection of the server-authoritative user row.
// Subscription fields are read-only on the client: conflict resolution must
// never treat them as a local write target.
type CachedUser struct {
	ID                    string     `gorm:"column:id;primaryKey" json:"id"`
	Email                 string     `gorm:"column:email" json:"email"`
	DisplayName           string     `gorm:"column:display_name" json:"display_name"`
	SubscriptionType      string     `gorm:"column:subscription_type" json:"subscription_type"`
	SubscriptionExpiresAt *time.Time `gorm:"column:subscription_expires_at" json:"subscription_expires_at"`
	TrialStartedAt        *time.Time `gorm:"column:trial_started_at" json:"trial_started_at"`
	TrialEndsAt           *time.Time `gorm:"column:trial_ends_at" json:"trial_ends_at"`
	SyncFields
}

func (CachedUser) TableName() string {
	return "users"
}
