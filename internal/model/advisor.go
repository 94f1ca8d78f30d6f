package model

type StaffStatus string

const (
	StaffAvailable StaffStatus = "Available"
	StaffBusy      StaffStatus = "Busy"
	StaffOffDuty   StaffStatus = "Off Duty"
)

type Staff struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Role       Role        `json:"role"`
	Status     StaffStatus `json:"status"`
	Department string      `json:"department,omitempty"`
}

type SymptomAnalysisRequest struct {
	Symptoms    string `json:"symptoms" binding:"required"`
	PatientData string `json:"patientData"`
}

type ScheduleRequest struct {
	Doctors []Staff `json:"doctors" binding:"required,min=1"`
}

// AdvisoryResponse wraps advisor text; the advisor never fails, it degrades.
type AdvisoryResponse struct {
	Text string `json:"text"`
}
