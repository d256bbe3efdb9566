package catalog

// Template is a standard exercise suggestion with no durable identity.
type Template struct {
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`
	Icon     string `json:"icon,omitempty" yaml:"icon"`
}

// Categories accepted by the default store schema.
const (
	CategoryChest     = "chest"
	CategoryBack      = "back"
	CategoryLegs      = "legs"
	CategoryShoulders = "shoulders"
	CategoryArms      = "arms"
	CategoryCore      = "core"
	CategoryCardio    = "cardio"
	CategoryOther     = "other"
)

// Categories lists every accepted category.
var Categories = []string{
	CategoryChest, CategoryBack, CategoryLegs, CategoryShoulders,
	CategoryArms, CategoryCore, CategoryCardio, CategoryOther,
}

// ValidCategory reports whether c is an accepted category.
func ValidCategory(c string) bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// StandardTemplates is the built-in seed list shown when the catalog has no
// matching item.
var StandardTemplates = []Template{
	{Name: "Bench Press", Category: CategoryChest, Icon: "barbell"},
	{Name: "Incline Dumbbell Press", Category: CategoryChest, Icon: "dumbbell"},
	{Name: "Chest Fly", Category: CategoryChest, Icon: "machine"},
	{Name: "Push-Up", Category: CategoryChest, Icon: "bodyweight"},
	{Name: "Deadlift", Category: CategoryBack, Icon: "barbell"},
	{Name: "Barbell Row", Category: CategoryBack, Icon: "barbell"},
	{Name: "Lat Pulldown", Category: CategoryBack, Icon: "cable"},
	{Name: "Pull-Up", Category: CategoryBack, Icon: "bodyweight"},
	{Name: "Seated Cable Row", Category: CategoryBack, Icon: "cable"},
	{Name: "Back Squat", Category: CategoryLegs, Icon: "barbell"},
	{Name: "Leg Press", Category: CategoryLegs, Icon: "machine"},
	{Name: "Romanian Deadlift", Category: CategoryLegs, Icon: "barbell"},
	{Name: "Walking Lunge", Category: CategoryLegs, Icon: "dumbbell"},
	{Name: "Leg Curl", Category: CategoryLegs, Icon: "machine"},
	{Name: "Standing Calf Raise", Category: CategoryLegs, Icon: "machine"},
	{Name: "Overhead Press", Category: CategoryShoulders, Icon: "barbell"},
	{Name: "Lateral Raise", Category: CategoryShoulders, Icon: "dumbbell"},
	{Name: "Face Pull", Category: CategoryShoulders, Icon: "cable"},
	{Name: "Biceps Curl", Category: CategoryArms, Icon: "dumbbell"},
	{Name: "Triceps Pushdown", Category: CategoryArms, Icon: "cable"},
	{Name: "Hammer Curl", Category: CategoryArms, Icon: "dumbbell"},
	{Name: "Plank", Category: CategoryCore, Icon: "bodyweight"},
	{Name: "Hanging Leg Raise", Category: CategoryCore, Icon: "bodyweight"},
	{Name: "Treadmill", Category: CategoryCardio, Icon: "treadmill"},
	{Name: "Rowing Machine", Category: CategoryCardio, Icon: "rower"},
	{Name: "Stationary Bike", Category: CategoryCardio, Icon: "bike"},
}
