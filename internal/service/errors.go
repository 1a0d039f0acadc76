package service

import "errors"

var (
	// ErrAssessmentNotFound indicates the assessment was not located.
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrAssignmentNotFound indicates the student has no instance of the assessment.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrStudentNotFound indicates the student was not located.
	ErrStudentNotFound = errors.New("student not found")
	// ErrNotAStudent indicates the account cannot hold assignments.
	ErrNotAStudent = errors.New("account is not a student")
	// ErrAlreadySubmitted rejects student mutations after submission.
	ErrAlreadySubmitted = errors.New("assignment already submitted")
	// ErrNotStarted rejects answers and submissions before a supervised assessment starts.
	ErrNotStarted = errors.New("assignment not started")
	// ErrPastDue rejects homework answers after the due date when late submission is disabled.
	ErrPastDue = errors.New("assessment is past due")
	// ErrAssessmentLocked rejects question edits once students have answered.
	ErrAssessmentLocked = errors.New("assessment already has answers")
	// ErrQuestionNotInAssessment rejects answers to foreign questions.
	ErrQuestionNotInAssessment = errors.New("question does not belong to assessment")
)
