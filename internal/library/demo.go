package library

import (
	"time"

	"github.com/nikhilbhutani/promptlibrary/internal/models"
	"github.com/nikhilbhutani/promptlibrary/internal/prompt"
)

type demoPrompt struct {
	id, title, text, theme, notes string
	modality                      models.Modality
	tags                          []string
	createdAt                     string
}

var demoPrompts = []demoPrompt{
	{
		id:        "1",
		title:     "Sci-Fi Spaceship Concept Art",
		text:      "Generate a concept art of a sleek, futuristic spaceship exploring a nebula. The design should be minimalist with glowing blue accents. Style of Syd Mead.",
		modality:  models.ModalityImage,
		theme:     "Concept Art",
		tags:      []string{"sci-fi", "spaceship", "Syd Mead"},
		notes:     "Great for generating desktop wallpapers. Adding '4K resolution' can improve quality.",
		createdAt: "2025-10-26T10:00:00Z",
	},
	{
		id:        "2",
		title:     "Python Function for Data Cleaning",
		text:      "Write a Python function that takes a pandas DataFrame as input and removes duplicate rows, fills missing numerical values with the mean, and trims whitespace from all string columns.",
		modality:  models.ModalityCode,
		theme:     "Data Science",
		tags:      []string{"python", "pandas", "data cleaning"},
		createdAt: "2025-10-26T11:00:00Z",
	},
	{
		id:        "3",
		title:     "Marketing Copy for a Coffee Shop",
		text:      "Create a short, catchy marketing paragraph for a new artisanal coffee shop. Emphasize the cozy atmosphere, ethically sourced beans, and skilled baristas. Tone should be warm and inviting.",
		modality:  models.ModalityText,
		theme:     "Marketing Copy",
		tags:      []string{"coffee", "advertising", "local business"},
		notes:     "Can be adapted for social media posts or website copy.",
		createdAt: "2025-10-26T12:00:00Z",
	},
	{
		id:        "4",
		title:     "Epic Movie Trailer VO",
		text:      "Generate a voice-over script for an epic fantasy movie trailer. The tone should be deep, dramatic, and mysterious. Include phrases like 'In a world of shadow...' and 'A hero will rise.'.",
		modality:  models.ModalityAudio,
		theme:     "Voice Over",
		tags:      []string{"movie trailer", "fantasy", "dramatic"},
		createdAt: "2025-10-25T14:00:00Z",
	},
	{
		id:        "5",
		title:     "Short cooking tutorial video",
		text:      "A 1-minute video showing how to make a perfect omelette. Start with ingredients display, show cracking eggs, whisking, pouring into a hot pan, and the final flip. Upbeat background music.",
		modality:  models.ModalityVideo,
		theme:     "Cooking Tutorial",
		tags:      []string{"food", "cooking", "short video"},
		createdAt: "2025-10-24T18:00:00Z",
	},
}

// DemoPrompts returns the starter collection for a fresh library.
func DemoPrompts() []models.Prompt {
	out := make([]models.Prompt, 0, len(demoPrompts))
	for _, d := range demoPrompts {
		created, _ := time.Parse(time.RFC3339, d.createdAt)
		out = append(out, prompt.NewPrompt(d.id, d.text, prompt.Metadata{
			Title:    d.title,
			Theme:    d.theme,
			Tags:     d.tags,
			Notes:    d.notes,
			Modality: d.modality,
		}, created))
	}
	return out
}
