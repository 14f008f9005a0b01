package employees

type Employee struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Department string `json:"department"`
	JobTitle   string `json:"jobTitle"`
}

type Training struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

// Completion records that an employee took a training.
type Completion struct {
	EmployeeID int64
	TrainingID int64
}
