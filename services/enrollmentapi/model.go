package enrollmentapi

import "time"

type Enrollment struct {
	UID                string `gorm:"primaryKey"`
	UserUID            string
	CourseUID          string
	EnrolledAt         time.Time
	ProgressPercentage int
	Completed          bool
	CompletedAt        *time.Time
}

type LessonProgress struct {
	UID            string `gorm:"primaryKey"`
	EnrollmentUID  string
	CourseUID      string
	LessonUID      string
	Completed      bool
	CompletedAt    *time.Time
	LastAccessedAt time.Time
}

// EnrollmentUID is the key of the single enrollment a user can have per course.
func EnrollmentUID(userUID string, courseUID string) string {
	return userUID + "_" + courseUID
}

func LessonProgressUID(enrollmentUID string, lessonUID string) string {
	return enrollmentUID + "_" + lessonUID
}

func NewEnrollment(userUID string, courseUID string, now time.Time) Enrollment {
	return Enrollment{
		UID:                EnrollmentUID(userUID, courseUID),
		UserUID:            userUID,
		CourseUID:          courseUID,
		EnrolledAt:         now,
		ProgressPercentage: 0,
		Completed:          false,
	}
}
