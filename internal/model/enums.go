package model

import "database/sql/driver"

// ── 用户状态 ──

type UserState string

const (
	UserStateActive     UserState = "ACTIVE"
	UserStateInactive   UserState = "INACTIVE"
	UserStateDeleted    UserState = "DELETED"
	UserStateRegistered UserState = "REGISTERED"
)

var UserStates = newEnumSet("user_state", "ACTIVE", "INACTIVE", "DELETED", "REGISTERED")

// ParseUserState 大小写不敏感解析
func ParseUserState(label string) (UserState, error) {
	v, err := UserStates.Parse(label)
	return UserState(v), err
}

func (s *UserState) Scan(src interface{}) error  { return scanEnum((*string)(s), src) }
func (s UserState) Value() (driver.Value, error) { return enumValue(string(s)) }

// ── 选课类型 ──

type EnrollmentType string

const (
	EnrollmentTypeCourse   EnrollmentType = "COURSE"
	EnrollmentTypeProgram  EnrollmentType = "PROGRAM"
	EnrollmentTypeExternal EnrollmentType = "EXTERNAL"
)

var EnrollmentTypes = newEnumSet("enrollment_type", "COURSE", "PROGRAM", "EXTERNAL")

func ParseEnrollmentType(label string) (EnrollmentType, error) {
	v, err := EnrollmentTypes.Parse(label)
	return EnrollmentType(v), err
}

func (t *EnrollmentType) Scan(src interface{}) error  { return scanEnum((*string)(t), src) }
func (t EnrollmentType) Value() (driver.Value, error) { return enumValue(string(t)) }

// ── 选课状态 ──

type EnrollmentState string

const (
	EnrollmentStateActive    EnrollmentState = "ACTIVE"
	EnrollmentStateInactive  EnrollmentState = "INACTIVE"
	EnrollmentStateCompleted EnrollmentState = "COMPLETED"
)

var EnrollmentStates = newEnumSet("enrollment_state", "ACTIVE", "INACTIVE", "COMPLETED")

func ParseEnrollmentState(label string) (EnrollmentState, error) {
	v, err := EnrollmentStates.Parse(label)
	return EnrollmentState(v), err
}

func (s *EnrollmentState) Scan(src interface{}) error  { return scanEnum((*string)(s), src) }
func (s EnrollmentState) Value() (driver.Value, error) { return enumValue(string(s)) }

// ── 话题状态 ──

type TopicState string

const (
	TopicStateActive   TopicState = "ACTIVE"
	TopicStateInactive TopicState = "INACTIVE"
	TopicStateDeleted  TopicState = "DELETED"
)

var TopicStates = newEnumSet("topic_state", "ACTIVE", "INACTIVE", "DELETED")

func ParseTopicState(label string) (TopicState, error) {
	v, err := TopicStates.Parse(label)
	return TopicState(v), err
}

func (s *TopicState) Scan(src interface{}) error  { return scanEnum((*string)(s), src) }
func (s TopicState) Value() (driver.Value, error) { return enumValue(string(s)) }

// ── 回帖状态 ──

type EntryState string

const (
	EntryStateActive   EntryState = "ACTIVE"
	EntryStateInactive EntryState = "INACTIVE"
	EntryStateDeleted  EntryState = "DELETED"
)

var EntryStates = newEnumSet("entry_state", "ACTIVE", "INACTIVE", "DELETED")

func ParseEntryState(label string) (EntryState, error) {
	v, err := EntryStates.Parse(label)
	return EntryState(v), err
}

func (s *EntryState) Scan(src interface{}) error  { return scanEnum((*string)(s), src) }
func (s EntryState) Value() (driver.Value, error) { return enumValue(string(s)) }
