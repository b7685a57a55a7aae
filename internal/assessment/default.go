package assessment

import (
	"fmt"
	"time"
)

// DefaultCatalog returns the built-in ASL alphabet course.
func DefaultCatalog() *Catalog {
	lessons := []Lesson{
		{ID: 1, Title: "Lesson 1: ASL Alphabet A–G", Description: "Learn and practice ASL handshapes for the letters A through G.", Image: "a_to_g.png"},
		{ID: 2, Title: "Lesson 2: ASL Alphabet H–N", Description: "Learn and practice ASL handshapes for the letters H through N.", Image: "h_to_n.png"},
		{ID: 3, Title: "Lesson 3: ASL Alphabet O–U", Description: "Learn and practice ASL handshapes for the letters O through U.", Image: "o_to_u.png"},
		{ID: 4, Title: "Lesson 4: ASL Alphabet V–Z", Description: "Learn and practice ASL handshapes for the letters V through Z.", Image: "v_to_z.png"},
		{ID: 5, Title: "Final Practice Lesson", Description: "Review all letters A–Z and test your recognition skills.", Image: "all_letters.png"},
	}

	defs := []Definition{
		{LessonID: 1, Title: "Lesson 1 Assessment", TimeWindow: 60 * time.Second, Tasks: repeatTasks("A", "C")},
		{LessonID: 2, Title: "Lesson 2 Assessment", TimeWindow: 60 * time.Second, Tasks: repeatTasks("H", "L")},
		{LessonID: 3, Title: "Lesson 3 Assessment", TimeWindow: 60 * time.Second, Tasks: repeatTasks("O", "R")},
		{LessonID: 4, Title: "Lesson 4 Assessment", TimeWindow: 60 * time.Second, Tasks: repeatTasks("W", "Y")},
		{LessonID: 5, Title: "Final Practice Assessment", TimeWindow: 90 * time.Second, Tasks: repeatTasks("B", "R", "V")},
	}

	c, err := NewCatalog(lessons, defs)
	if err != nil {
		panic(fmt.Sprintf("assessment: invalid default catalog: %v", err))
	}
	return c
}

// repeatTasks asks for each letter three times at 0.6 confidence.
func repeatTasks(letters ...string) []Task {
	tasks := make([]Task, len(letters))
	for i, l := range letters {
		tasks[i] = Task{
			Prompt:         fmt.Sprintf("Sign the letter %s three times.", l),
			TargetLabel:    l,
			MinRepetitions: 3,
			MinConfidence:  0.6,
		}
	}
	return tasks
}
