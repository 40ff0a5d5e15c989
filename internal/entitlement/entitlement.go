// Package entitlement gates capabilities by subscription plan and actor role.
package entitlement

import "github.com/kursadbilgin/campaign-engine/internal/domain"

// Feature keys gated by plan.
const (
	FeatureEmailCampaigns = "email_campaigns"
	FeatureSMSCampaigns   = "sms_campaigns"
)

// Permission keys gated by role.
const (
	PermCampaignSend = "campaign.send"
	PermPlanManage   = "plan.manage"
	PermCreditsTopup = "credits.topup"
)

var planFeatures = map[domain.Plan]map[string]bool{
	domain.PlanFree: {
		FeatureEmailCampaigns: true,
	},
	domain.PlanPro: {
		FeatureEmailCampaigns: true,
		FeatureSMSCampaigns:   true,
	},
	domain.PlanElite: {
		FeatureEmailCampaigns: true,
		FeatureSMSCampaigns:   true,
	},
}

var rolePermissions = map[domain.Role]map[string]bool{
	domain.RoleOwner: {
		PermCampaignSend: true,
		PermPlanManage:   true,
		PermCreditsTopup: true,
	},
	domain.RoleAdmin: {
		PermCampaignSend: true,
		PermCreditsTopup: true,
	},
	domain.RoleMember: {},
}

// HasFeature reports whether a plan includes a feature.
func HasFeature(plan domain.Plan, feature string) bool {
	return planFeatures[plan][feature]
}

// HasPermission reports whether a role grants a permission.
func HasPermission(role domain.Role, permission string) bool {
	return rolePermissions[role][permission]
}

// FeatureForLeg maps a delivery leg to its gating feature key.
func FeatureForLeg(leg domain.Channel) string {
	if leg == domain.ChannelSMS {
		return FeatureSMSCampaigns
	}
	return FeatureEmailCampaigns
}
