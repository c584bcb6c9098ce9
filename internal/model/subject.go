package model

// Subject is a taught course with the comma-separated list of its teachers.
type Subject struct {
	ID          int64  `gorm:"primaryKey"`
	SubName     string `gorm:"column:sub_name;uniqueIndex;size:255;not null"`
	TeacherName string `gorm:"column:teacher_name;size:1024"`
}
