package model

import (
	"time"

	"gorm.io/gorm"
)

// User 用户表 — 对应 users
type User struct {
	ID        int64      `gorm:"column:user_id;primaryKey;autoIncrement:false"   json:"user_id"`
	Name      string     `gorm:"column:user_name;type:varchar(255);not null"     json:"user_name"`
	CreatedAt time.Time  `gorm:"column:user_created_at;not null;autoCreateTime:false" json:"user_created_at"`
	DeletedAt *time.Time `gorm:"column:user_deleted_at"                          json:"user_deleted_at,omitempty"`
	State     UserState  `gorm:"column:user_state;type:varchar(20);index"        json:"user_state"`

	// 关联
	Login       *Login       `gorm:"foreignKey:UserID"         json:"-"`
	Enrollments []Enrollment `gorm:"foreignKey:UserID"         json:"enrollments,omitempty"`
	Topics      []Topic      `gorm:"foreignKey:PostedByUserID" json:"topics,omitempty"`
	Entries     []Entry      `gorm:"foreignKey:PostedByUserID" json:"entries,omitempty"`
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// Validate 校验主键、必填字段、枚举与软删除生命周期
func (u *User) Validate() error {
	return firstError(
		requirePositive("user_id", u.ID),
		requireText("user_name", u.Name),
		UserStates.validate(string(u.State)),
		checkLifecycle("user", u.State == UserStateDeleted, u.DeletedAt),
	)
}

func (u *User) BeforeSave(*gorm.DB) error { return u.Validate() }

// Login 登录凭据表 — 对应 login（与 users 一对一）
type Login struct {
	UserID  int64  `gorm:"column:user_id;primaryKey;autoIncrement:false"     json:"user_id"`
	LoginID string `gorm:"column:user_login_id;type:varchar(255);not null"   json:"-"`

	// 关联
	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (Login) TableName() string { return "login" }

func (l *Login) Validate() error {
	return firstError(
		requirePositive("user_id", l.UserID),
		requireText("user_login_id", l.LoginID),
	)
}

func (l *Login) BeforeSave(*gorm.DB) error { return l.Validate() }
