package domain

// GroupSettings holds per-conversation feature toggles. A fresh record has
// every feature enabled.
type GroupSettings struct {
	AIEnabled             bool
	WelcomeEnabled        bool
	GoodbyeEnabled        bool
	SpamFilterEnabled     bool
	LinkProtectionEnabled bool
}

// DefaultGroupSettings returns the all-enabled default record.
func DefaultGroupSettings() GroupSettings {
	return GroupSettings{
		AIEnabled:             true,
		WelcomeEnabled:        true,
		GoodbyeEnabled:        true,
		SpamFilterEnabled:     true,
		LinkProtectionEnabled: true,
	}
}

// SettingsPatch is a partial update; nil fields are left untouched.
type SettingsPatch struct {
	AIEnabled             *bool
	WelcomeEnabled        *bool
	GoodbyeEnabled        *bool
	SpamFilterEnabled     *bool
	LinkProtectionEnabled *bool
}

// Apply merges the patch into the settings record.
func (s *GroupSettings) Apply(p SettingsPatch) {
	if p.AIEnabled != nil {
		s.AIEnabled = *p.AIEnabled
	}
	if p.WelcomeEnabled != nil {
		s.WelcomeEnabled = *p.WelcomeEnabled
	}
	if p.GoodbyeEnabled != nil {
		s.GoodbyeEnabled = *p.GoodbyeEnabled
	}
	if p.SpamFilterEnabled != nil {
		s.SpamFilterEnabled = *p.SpamFilterEnabled
	}
	if p.LinkProtectionEnabled != nil {
		s.LinkProtectionEnabled = *p.LinkProtectionEnabled
	}
}
