package model

// UserDetails is a user profile as returned by the auth service. Used both
// for the signed-in identity and for hydrating conversation participants.
type UserDetails struct {
	ID            ID       `json:"id"`
	Name          string   `json:"name"`
	Username      string   `json:"username"`
	Email         string   `json:"email,omitempty"`
	Profession    string   `json:"profession,omitempty"`
	ProfileImage  string   `json:"profileImage,omitempty"`
	SkillsToLearn []string `json:"skillsToLearn,omitempty"`
	SkillsToTeach []string `json:"skillsToTeach,omitempty"`
}
