package usecase

import (
	"encoding/json"

	"langtest-practice/internal/domain/model"
)

// Task types served by the catalog and accepted by Generate.
const (
	TaskTypeEmail  = "TASK_1_EMAIL"
	TaskTypeSurvey = "TASK_2_SURVEY"
)

const (
	speakingPrepSeconds = 60
	speakingLongSeconds = 90
	speakingBaseSeconds = 60
)

type emailDetails struct {
	Scenario     string   `json:"scenario"`
	BulletPoints []string `json:"bulletPoints"`
}

type surveyOption struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

type surveyDetails struct {
	SurveyContext string       `json:"surveyContext"`
	OptionA       surveyOption `json:"optionA"`
	OptionB       surveyOption `json:"optionB"`
}

type speakingDetails struct {
	Prompt          string `json:"prompt"`
	PreparationTime int    `json:"preparationTime"`
	SpeakingTime    int    `json:"speakingTime"`
}

func mustDetails(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// speakingTypes lists SPEAKING_TASK_1 .. SPEAKING_TASK_8.
var speakingTypes = func() map[string]int {
	m := make(map[string]int, 8)
	for i := 1; i <= 8; i++ {
		m["SPEAKING_TASK_"+string(rune('0'+i))] = i
	}
	return m
}()

// SpeakingTime is the answer window in seconds for a speaking task type.
func SpeakingTime(taskType string) int {
	switch speakingTypes[taskType] {
	case 1, 7:
		return speakingLongSeconds
	default:
		return speakingBaseSeconds
	}
}

// ModeOf reports the mode a task type belongs to.
func ModeOf(taskType string) (model.TaskMode, bool) {
	switch taskType {
	case TaskTypeEmail, TaskTypeSurvey:
		return model.TaskModeWriting, true
	}
	if _, ok := speakingTypes[taskType]; ok {
		return model.TaskModeSpeaking, true
	}
	return "", false
}

var demoWritingTask = model.Task{
	ID:           "demo-writing-1",
	Mode:         model.TaskModeWriting,
	Type:         TaskTypeEmail,
	Title:        "Writing Task 1: Email (Demo)",
	Instructions: "Read the situation and write an email of 150-200 words.",
	IsDemo:       true,
	Details: mustDetails(emailDetails{
		Scenario: "The gym you joined last month has closed its swimming pool for repairs without telling members, and you paid extra for pool access.",
		BulletPoints: []string{
			"Explain what you signed up for.",
			"Describe how the closure affects you.",
			"Say what you want the manager to do.",
		},
	}),
}

var demoSpeakingTask = model.Task{
	ID:           "demo-speaking-1",
	Mode:         model.TaskModeSpeaking,
	Type:         "SPEAKING_TASK_1",
	Title:        "Speaking Task 1: Giving Advice (Demo)",
	Instructions: "A coworker asks for your advice.",
	IsDemo:       true,
	Details: mustDetails(speakingDetails{
		Prompt:          "Your coworker Maya wants to move to a new city for work but is worried about leaving her friends behind. Give her advice.",
		PreparationTime: speakingPrepSeconds,
		SpeakingTime:    SpeakingTime("SPEAKING_TASK_1"),
	}),
}

var premiumTasks = []model.Task{
	{
		ID: "w1-1", Mode: model.TaskModeWriting, Type: TaskTypeEmail,
		Title:        "Writing Task 1: Email (#1)",
		Instructions: "Read the situation and write an email of 150-200 words.",
		Details: mustDetails(emailDetails{
			Scenario:     "A furniture store delivered the wrong sofa to your apartment and the delivery team refused to take it back.",
			BulletPoints: []string{"Describe your order.", "Explain what went wrong on delivery day.", "Ask for a specific resolution."},
		}),
	},
	{
		ID: "w1-2", Mode: model.TaskModeWriting, Type: TaskTypeEmail,
		Title:        "Writing Task 1: Email (#2)",
		Instructions: "Read the situation and write an email of 150-200 words.",
		Details: mustDetails(emailDetails{
			Scenario:     "Construction work on your street starts at 6 a.m. every day, including weekends.",
			BulletPoints: []string{"Describe the noise.", "Explain how it affects your household.", "Propose a compromise to the city office."},
		}),
	},
	{
		ID: "w2-1", Mode: model.TaskModeWriting, Type: TaskTypeSurvey,
		Title:        "Writing Task 2: Survey (#1)",
		Instructions: "Choose one option and explain your choice in 150-200 words.",
		Details: mustDetails(surveyDetails{
			SurveyContext: "Your town has funding for one new project.",
			OptionA:       surveyOption{Label: "Option A: Community Garden", Description: "Shared plots and a greenhouse open to all residents."},
			OptionB:       surveyOption{Label: "Option B: Bike Lanes", Description: "Protected lanes connecting downtown to the suburbs."},
		}),
	},
	{
		ID: "w2-2", Mode: model.TaskModeWriting, Type: TaskTypeSurvey,
		Title:        "Writing Task 2: Survey (#2)",
		Instructions: "Choose one option and explain your choice in 150-200 words.",
		Details: mustDetails(surveyDetails{
			SurveyContext: "Your employer is changing its holiday policy.",
			OptionA:       surveyOption{Label: "Option A: Fixed Closure", Description: "The office closes for two weeks in December."},
			OptionB:       surveyOption{Label: "Option B: Flexible Days", Description: "Staff pick their own days off through the year."},
		}),
	},
	{
		ID: "s1-1", Mode: model.TaskModeSpeaking, Type: "SPEAKING_TASK_1",
		Title:        "Speaking Task 1: Giving Advice",
		Instructions: "A neighbour asks for your advice.",
		Details: mustDetails(speakingDetails{
			Prompt:          "Your neighbour wants to adopt a dog but works long hours. Advise him.",
			PreparationTime: speakingPrepSeconds,
			SpeakingTime:    SpeakingTime("SPEAKING_TASK_1"),
		}),
	},
	{
		ID: "s2-1", Mode: model.TaskModeSpeaking, Type: "SPEAKING_TASK_2",
		Title:        "Speaking Task 2: Personal Experience",
		Instructions: "Talk about a past experience.",
		Details: mustDetails(speakingDetails{
			Prompt:          "Describe a time you had to learn something new very quickly.",
			PreparationTime: speakingPrepSeconds,
			SpeakingTime:    SpeakingTime("SPEAKING_TASK_2"),
		}),
	},
	{
		ID: "s5-1", Mode: model.TaskModeSpeaking, Type: "SPEAKING_TASK_5",
		Title:        "Speaking Task 5: Comparing and Persuading",
		Instructions: "Choose an option and persuade a family member.",
		Details: mustDetails(speakingDetails{
			Prompt:          "Your family is choosing between a beach holiday and a camping trip. Pick one and convince them.",
			PreparationTime: speakingPrepSeconds,
			SpeakingTime:    SpeakingTime("SPEAKING_TASK_5"),
		}),
	},
	{
		ID: "s7-1", Mode: model.TaskModeSpeaking, Type: "SPEAKING_TASK_7",
		Title:        "Speaking Task 7: Expressing Opinions",
		Instructions: "Give and support your opinion.",
		Details: mustDetails(speakingDetails{
			Prompt:          "Should high schools require students to do volunteer work? Explain your opinion.",
			PreparationTime: speakingPrepSeconds,
			SpeakingTime:    SpeakingTime("SPEAKING_TASK_7"),
		}),
	},
}

// PremiumTasks returns a copy of the full catalog.
func PremiumTasks() []model.Task {
	out := make([]model.Task, len(premiumTasks))
	copy(out, premiumTasks)
	return out
}

func findTask(taskType string) (model.Task, bool) {
	for _, t := range premiumTasks {
		if t.Type == taskType {
			return t, true
		}
	}
	return model.Task{}, false
}
