package classifier

import "workingonit/backend/internal/model"

// Keywords maps each sphere to the substrings that identify it. Some words
// appear under more than one sphere ("meeting", "meditate", "reflect"); the
// first sphere in model.Spheres order wins.
var Keywords = map[model.Sphere][]string{
	model.SpherePhysical: {
		"workout", "exercise", "run", "walk", "gym", "yoga", "swim", "bike",
		"sleep", "rest", "nap", "stretch", "fitness", "sport", "health",
		"meal", "cook", "eat", "nutrition", "diet", "hydrate", "doctor",
	},
	model.SphereEmotional: {
		"therapy", "journal", "reflect", "meditate", "emotion", "feeling",
		"cry", "process", "heal", "self-care", "mindfulness", "breathe",
		"anxiety", "stress", "calm", "peace", "gratitude", "mood",
	},
	model.SphereSocial: {
		"friend", "family", "call", "text", "chat", "hangout", "party",
		"meeting", "connect", "community", "conversation", "relationship",
		"date", "social", "networking", "collaboration", "team",
	},
	model.SphereIntellectual: {
		"read", "study", "learn", "course", "class", "research", "book",
		"podcast", "article", "video", "tutorial", "education", "skill",
		"practice", "training", "knowledge", "analyze", "think",
	},
	model.SphereCreative: {
		"write", "draw", "paint", "design", "create", "art", "music",
		"compose", "craft", "make", "build", "photography", "dance",
		"creative", "imagination", "express", "play", "hobby",
	},
	model.SphereProfessional: {
		"work", "project", "task", "job", "career", "meeting", "email",
		"deadline", "client", "presentation", "business", "office",
		"professional", "development", "productivity", "goal", "plan",
	},
	model.SphereSpiritual: {
		"meditate", "pray", "worship", "spiritual", "meaning", "purpose",
		"values", "faith", "belief", "nature", "reflect", "contemplate",
		"philosophy", "existential", "mindful", "sacred", "ritual",
	},
}
