package types

// Asset keys used for balance accounting. Lunaris is the settlement currency;
// the rest are tradable resource kinds.
const (
	AssetOxygen      = "oxygen"
	AssetHydroponics = "hydroponics"
	AssetEnergy      = "energy"
	AssetLunaris     = "lunaris"
)

// Claimable daily resource types.
const (
	ResourcePremiumOxygen    = "premiumOxygen"
	ResourceHyperHydroponics = "hyperHydroponics"
	ResourceEnergyCrystal    = "energyCrystal"
	ResourceLunarisBonus     = "lunarisBonus"
)

// DailyResource describes one claimable resource type: its daily pool size,
// the amount granted per claim, and the balance asset it credits.
type DailyResource struct {
	Name        string `json:"name"`
	DailyLimit  int64  `json:"daily_limit"`
	ClaimAmount int64  `json:"claim_amount"`
	Rarity      string `json:"rarity"`
	AssetKey    string `json:"asset_key"`
}

// DailyResources is the fixed resource table. It is loaded once and never
// mutated at runtime.
var DailyResources = map[string]DailyResource{
	ResourcePremiumOxygen: {
		Name:        "Premium Oxygen",
		DailyLimit:  1000,
		ClaimAmount: 50,
		Rarity:      "rare",
		AssetKey:    AssetOxygen,
	},
	ResourceHyperHydroponics: {
		Name:        "Hyper-Hydroponics",
		DailyLimit:  500,
		ClaimAmount: 75,
		Rarity:      "epic",
		AssetKey:    AssetHydroponics,
	},
	ResourceEnergyCrystal: {
		Name:        "Energy Crystal",
		DailyLimit:  250,
		ClaimAmount: 100,
		Rarity:      "legendary",
		AssetKey:    AssetEnergy,
	},
	ResourceLunarisBonus: {
		Name:        "Lunaris Bonus",
		DailyLimit:  2000,
		ClaimAmount: 100,
		Rarity:      "uncommon",
		AssetKey:    AssetLunaris,
	},
}

// TradableKinds are the resource kinds that can be listed on the marketplace
// and that carry a fluctuating market price.
var TradableKinds = []string{AssetOxygen, AssetHydroponics, AssetEnergy}

// IsTradableKind reports whether kind can be listed on the marketplace.
func IsTradableKind(kind string) bool {
	for _, k := range TradableKinds {
		if k == kind {
			return true
		}
	}
	return false
}
