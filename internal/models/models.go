package models

import "database/sql"

type Models struct {
	Jobs JobModel
}

func NewModels(db *sql.DB) Models {
	return Models{
		Jobs: NewJobModel(db),
	}
}

func NewMockModels() Models {
	return Models{
		Jobs: NewMockJobModel(),
	}
}
