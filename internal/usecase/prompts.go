package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/domain/ports/adapter"
)

const examinerSystem = "You are an experienced CELPIP examiner and task writer. Reply with a single JSON object and nothing else."

var generatePrompts = map[string]string{
	TaskTypeEmail:  `Write a new CELPIP Writing Task 1 (email) scenario. JSON shape: {"scenario": string, "bulletPoints": [string, string, string]}`,
	TaskTypeSurvey: `Write a new CELPIP Writing Task 2 (survey) question. JSON shape: {"surveyContext": string, "optionA": {"label": string, "description": string}, "optionB": {"label": string, "description": string}}`,
	"SPEAKING_TASK_1": `Write a CELPIP Speaking Task 1 (giving advice). JSON shape: {"prompt": string}`,
	"SPEAKING_TASK_2": `Write a CELPIP Speaking Task 2 (personal experience). JSON shape: {"prompt": string}`,
	"SPEAKING_TASK_3": `Write a CELPIP Speaking Task 3 (describing a scene). JSON shape: {"prompt": string, "imageDescription": string}`,
	"SPEAKING_TASK_4": `Write a CELPIP Speaking Task 4 (making predictions). JSON shape: {"prompt": string, "imageDescription": string}`,
	"SPEAKING_TASK_5": `Write a CELPIP Speaking Task 5 (comparing and persuading). JSON shape: {"prompt": string, "optionA": {"title": string, "features": [string]}, "optionB": {"title": string, "features": [string]}}`,
	"SPEAKING_TASK_6": `Write a CELPIP Speaking Task 6 (dealing with a difficult situation). JSON shape: {"prompt": string, "difficultSituationOptions": {"option1": string, "option2": string}}`,
	"SPEAKING_TASK_7": `Write a CELPIP Speaking Task 7 (expressing opinions). JSON shape: {"prompt": string}`,
	"SPEAKING_TASK_8": `Write a CELPIP Speaking Task 8 (describing an unusual situation). JSON shape: {"prompt": string, "imageDescription": string}`,
}

var taskTitles = map[string]string{
	TaskTypeEmail:     "Writing Task 1: Email",
	TaskTypeSurvey:    "Writing Task 2: Survey",
	"SPEAKING_TASK_1": "Speaking Task 1: Giving Advice",
	"SPEAKING_TASK_2": "Speaking Task 2: Personal Experience",
	"SPEAKING_TASK_3": "Speaking Task 3: Describing a Scene",
	"SPEAKING_TASK_4": "Speaking Task 4: Making Predictions",
	"SPEAKING_TASK_5": "Speaking Task 5: Comparing and Persuading",
	"SPEAKING_TASK_6": "Speaking Task 6: Difficult Situation",
	"SPEAKING_TASK_7": "Speaking Task 7: Expressing Opinions",
	"SPEAKING_TASK_8": "Speaking Task 8: Unusual Situation",
}

const evaluationShape = `{"score": integer 1-12, %s"feedback": string, "breakdown": {"content": string, "vocabulary": string, "coherence": string, "readability": string}, "improvedVersion": string}`

func generateMessages(taskType string) []adapter.Message {
	return []adapter.Message{
		{Role: "system", Content: examinerSystem},
		{Role: "user", Content: generatePrompts[taskType]},
	}
}

func taskContext(task *model.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", task.Title)
	if task.Instructions != "" {
		fmt.Fprintf(&b, "Instructions: %s\n", task.Instructions)
	}
	if len(task.Details) > 0 {
		fmt.Fprintf(&b, "Details: %s\n", task.Details)
	}
	return b.String()
}

func writingEvalMessages(task *model.Task, text string) []adapter.Message {
	user := fmt.Sprintf("Score this CELPIP writing response. Readability covers grammar.\n%s\nResponse:\n%s\n\nJSON shape: %s",
		taskContext(task), text, fmt.Sprintf(evaluationShape, ""))
	return []adapter.Message{
		{Role: "system", Content: examinerSystem},
		{Role: "user", Content: user},
	}
}

func speakingEvalMessages(task *model.Task, audio adapter.Media) []adapter.Message {
	user := fmt.Sprintf("Transcribe the attached spoken answer, then score it on CELPIP criteria. Readability covers pronunciation.\n%s\nJSON shape: %s",
		taskContext(task), fmt.Sprintf(evaluationShape, `"transcript": string, `))
	return []adapter.Message{
		{Role: "system", Content: examinerSystem},
		{Role: "user", Content: user, Media: []adapter.Media{audio}},
	}
}

var fenceRe = regexp.MustCompile("(?s)^\\s*```(?:json)?\\s*(.*?)\\s*```\\s*$")

// cleanJSON strips a markdown code fence around model output.
func cleanJSON(s string) string {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return strings.TrimSpace(s)
}
