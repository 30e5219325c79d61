package model

import (
	"time"

	"gorm.io/gorm"
)

// Course 课程表 — 对应 courses（导入后不再修改）
type Course struct {
	ID        int64     `gorm:"column:course_id;primaryKey;autoIncrement:false"     json:"course_id"`
	Semester  string    `gorm:"column:semester;type:varchar(255);not null"          json:"semester"`
	Code      string    `gorm:"column:course_code;type:varchar(255);not null"       json:"course_code"`
	Name      string    `gorm:"column:course_name;type:varchar(255);not null"       json:"course_name"`
	CreatedAt time.Time `gorm:"column:course_created_at;not null;autoCreateTime:false;index" json:"course_created_at"`

	// 关联
	Enrollments []Enrollment `gorm:"foreignKey:CourseID" json:"enrollments,omitempty"`
	Topics      []Topic      `gorm:"foreignKey:CourseID" json:"topics,omitempty"`
}

func (Course) TableName() string { return "courses" }

func (c *Course) Validate() error {
	return firstError(
		requirePositive("course_id", c.ID),
		requireText("semester", c.Semester),
		requireText("course_code", c.Code),
		requireText("course_name", c.Name),
	)
}

func (c *Course) BeforeSave(*gorm.DB) error { return c.Validate() }

// Enrollment 选课表 — 对应 enrollment，(user_id, course_id) 复合主键
type Enrollment struct {
	UserID   int64           `gorm:"column:user_id;primaryKey;autoIncrement:false"   json:"user_id"`
	CourseID int64           `gorm:"column:course_id;primaryKey;autoIncrement:false" json:"course_id"`
	Type     EnrollmentType  `gorm:"column:enrollment_type;type:varchar(20)"         json:"enrollment_type"`
	State    EnrollmentState `gorm:"column:enrollment_state;type:varchar(20);index"  json:"enrollment_state"`

	// 关联
	User   *User   `gorm:"foreignKey:UserID"   json:"user,omitempty"`
	Course *Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

func (Enrollment) TableName() string { return "enrollment" }

func (e *Enrollment) Validate() error {
	return firstError(
		requirePositive("user_id", e.UserID),
		requirePositive("course_id", e.CourseID),
		EnrollmentTypes.validate(string(e.Type)),
		EnrollmentStates.validate(string(e.State)),
	)
}

func (e *Enrollment) BeforeSave(*gorm.DB) error { return e.Validate() }
