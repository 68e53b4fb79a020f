package entity

import "strings"

// TestKind identifies the kind of test a session was generated for.
type TestKind string

const (
	TestKindSATDiagnostic TestKind = "SAT Diagnostic"
	TestKindACTDiagnostic TestKind = "ACT Diagnostic"
	TestKindAPDiagnostic  TestKind = "AP Diagnostic"

	TestKindSATMath     TestKind = "SAT Math"
	TestKindSATRW       TestKind = "SAT Reading & Writing"
	TestKindSATAlgebra  TestKind = "SAT Algebra"
	TestKindSATGeometry TestKind = "SAT Geometry"

	TestKindACTMath    TestKind = "ACT Math"
	TestKindACTScience TestKind = "ACT Science"
	TestKindACTReading TestKind = "ACT Reading"
	TestKindACTEnglish TestKind = "ACT English"
	TestKindACTWriting TestKind = "ACT Writing"

	TestKindAPCalcAB       TestKind = "AP Calculus AB"
	TestKindAPUSH          TestKind = "AP US History"
	TestKindAPBiology      TestKind = "AP Biology"
	TestKindAPLit          TestKind = "AP English Literature"
	TestKindAPPhysics1     TestKind = "AP Physics 1"
	TestKindAPWorldHistory TestKind = "AP World History"
	TestKindAPChemistry    TestKind = "AP Chemistry"
	TestKindAPPsychology   TestKind = "AP Psychology"

	TestKindAdaptiveSATMath TestKind = "Adaptive SAT Math"
	TestKindAdaptiveACTMath TestKind = "Adaptive ACT Math"
	TestKindDailyQuiz       TestKind = "Daily Quiz"
	TestKindConceptCheck    TestKind = "Concept Check Quiz"

	TestKindSATMathMock     TestKind = "SAT Math Mock"
	TestKindSATRWMock       TestKind = "SAT Reading & Writing Mock"
	TestKindSATAlgebraMock  TestKind = "SAT Algebra Mock"
	TestKindSATGeometryMock TestKind = "SAT Geometry Mock"
	TestKindACTMathMock     TestKind = "ACT Math Mock"
	TestKindACTScienceMock  TestKind = "ACT Science Mock"
	TestKindACTReadingMock  TestKind = "ACT Reading Mock"
	TestKindACTEnglishMock  TestKind = "ACT English Mock"
	TestKindAPCalcABMock    TestKind = "AP Calculus AB Mock"
	TestKindAPUSHMock       TestKind = "AP US History Mock"
	TestKindAPBiologyMock   TestKind = "AP Biology Mock"
)

// Exam is the standardized exam family a goal or test belongs to.
type Exam string

const (
	ExamSAT Exam = "SAT"
	ExamACT Exam = "ACT"
	ExamAP  Exam = "AP"
)

var allTestKinds = []TestKind{
	TestKindSATDiagnostic, TestKindACTDiagnostic, TestKindAPDiagnostic,
	TestKindSATMath, TestKindSATRW, TestKindSATAlgebra, TestKindSATGeometry,
	TestKindACTMath, TestKindACTScience, TestKindACTReading, TestKindACTEnglish, TestKindACTWriting,
	TestKindAPCalcAB, TestKindAPUSH, TestKindAPBiology, TestKindAPLit, TestKindAPPhysics1,
	TestKindAPWorldHistory, TestKindAPChemistry, TestKindAPPsychology,
	TestKindAdaptiveSATMath, TestKindAdaptiveACTMath, TestKindDailyQuiz, TestKindConceptCheck,
	TestKindSATMathMock, TestKindSATRWMock, TestKindSATAlgebraMock, TestKindSATGeometryMock,
	TestKindACTMathMock, TestKindACTScienceMock, TestKindACTReadingMock, TestKindACTEnglishMock,
	TestKindAPCalcABMock, TestKindAPUSHMock, TestKindAPBiologyMock,
}

var knownTestKinds = func() map[TestKind]struct{} {
	m := make(map[TestKind]struct{}, len(allTestKinds))
	for _, k := range allTestKinds {
		m[k] = struct{}{}
	}
	return m
}()

// AllTestKinds returns every known kind in declaration order.
func AllTestKinds() []TestKind {
	out := make([]TestKind, len(allTestKinds))
	copy(out, allTestKinds)
	return out
}

func (k TestKind) IsValid() bool {
	_, ok := knownTestKinds[k]
	return ok
}

func (k TestKind) IsDiagnostic() bool {
	return strings.Contains(strings.ToLower(string(k)), "diagnostic")
}

// Exam returns the exam family, or "" for cross-exam kinds such as the daily quiz.
func (k TestKind) Exam() Exam {
	s := string(k)
	s = strings.TrimPrefix(s, "Adaptive ")
	switch {
	case strings.HasPrefix(s, "SAT"):
		return ExamSAT
	case strings.HasPrefix(s, "ACT"):
		return ExamACT
	case strings.HasPrefix(s, "AP"):
		return ExamAP
	}
	return ""
}
