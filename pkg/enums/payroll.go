package enums

import "fmt"

// PayrollRole identifies who receives a payroll line.
type PayrollRole string

const (
	PayrollRoleDriver  PayrollRole = "DRIVER"
	PayrollRoleService PayrollRole = "SERVICE"
)

var validPayrollRoles = []PayrollRole{PayrollRoleDriver, PayrollRoleService}

func (r PayrollRole) String() string {
	return string(r)
}

func (r PayrollRole) IsValid() bool {
	for _, candidate := range validPayrollRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

func ParsePayrollRole(value string) (PayrollRole, error) {
	for _, candidate := range validPayrollRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payroll role %q", value)
}

// PayrollStatus tracks disbursement of a payroll line.
type PayrollStatus string

const (
	PayrollStatusPending   PayrollStatus = "PENDING"
	PayrollStatusCompleted PayrollStatus = "COMPLETED"
)

var validPayrollStatuses = []PayrollStatus{PayrollStatusPending, PayrollStatusCompleted}

func (s PayrollStatus) String() string {
	return string(s)
}

func (s PayrollStatus) IsValid() bool {
	for _, candidate := range validPayrollStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParsePayrollStatus(value string) (PayrollStatus, error) {
	for _, candidate := range validPayrollStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payroll status %q", value)
}
