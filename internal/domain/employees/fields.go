package employees

// FilterFields blanks sensitive personal data unless the viewer is privileged
// or looking at their own record.
func FilterFields(emp *Employee, viewer Viewer) {
	if viewer.Privileged {
		return
	}
	if viewer.UserID != "" && emp.UserID == viewer.UserID {
		return
	}
	emp.NationalID = ""
	emp.BankAccount = ""
	emp.DateOfBirth = nil
}
