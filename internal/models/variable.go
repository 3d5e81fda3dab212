package models

// LetterVariables is the closed record of substitution values resolved for a
// request. Keeping the built-in fields explicit catches missing-field typos
// at compile time; only professor-defined custom answers stay in an open map
// merged at the interpolation boundary.
type LetterVariables struct {
	StudentName    string
	StudentEmail   string
	StudentPhone   string
	Program        string
	Institution    string
	Major          string
	GPA            string
	GraduationYear string
	Relationship   string

	ProfessorName        string
	ProfessorTitle       string
	ProfessorDepartment  string
	ProfessorInstitution string

	Date string

	Custom map[string]string
}

// Map flattens the record into the open dictionary consumed by the
// interpolator. Custom answers never shadow built-in names.
func (v LetterVariables) Map() map[string]string {
	out := make(map[string]string, len(v.Custom)+14)
	for key, value := range v.Custom {
		out[key] = value
	}
	out["student_name"] = v.StudentName
	out["student_email"] = v.StudentEmail
	out["student_phone"] = v.StudentPhone
	out["program"] = v.Program
	out["institution"] = v.Institution
	out["major"] = v.Major
	out["gpa"] = v.GPA
	out["graduation_year"] = v.GraduationYear
	out["relationship"] = v.Relationship
	out["professor_name"] = v.ProfessorName
	out["professor_title"] = v.ProfessorTitle
	out["professor_department"] = v.ProfessorDepartment
	out["professor_institution"] = v.ProfessorInstitution
	out["date"] = v.Date
	return out
}

// VariableDefinition describes one catalog entry for template-authoring UIs.
type VariableDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}
