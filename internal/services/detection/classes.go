package detection

import (
	"fmt"

	"sentinel-worker-go/internal/config"
)

// PersonClassID is the detector class id for a person
const PersonClassID = 0

// WeaponClass is the static metadata of a weapon class
type WeaponClass struct {
	Name          string
	Severity      float64
	MinConfidence float64
}

// ClassTable maps detector class ids to weapon metadata. It is immutable
// once built and safe to share between cameras.
type ClassTable struct {
	weapons map[int]WeaponClass
}

var defaultWeapons = map[int]WeaponClass{
	43: {Name: "Knife", Severity: 8.5, MinConfidence: 0.20},
	34: {Name: "Baseball Bat", Severity: 6.0, MinConfidence: 0.30},
	76: {Name: "Scissors", Severity: 5.0, MinConfidence: 0.35},
}

func DefaultClassTable() ClassTable {
	return NewClassTable(defaultWeapons)
}

func NewClassTable(weapons map[int]WeaponClass) ClassTable {
	m := make(map[int]WeaponClass, len(weapons))
	for id, w := range weapons {
		m[id] = w
	}
	return ClassTable{weapons: m}
}

// ClassTableFromTuning starts from the default table and replaces or adds
// the weapon classes listed in the tuning file.
func ClassTableFromTuning(t *config.Tuning) ClassTable {
	m := make(map[int]WeaponClass, len(defaultWeapons))
	for id, w := range defaultWeapons {
		m[id] = w
	}
	if t != nil {
		for id, w := range t.Weapons {
			m[id] = WeaponClass{Name: w.Name, Severity: w.Severity, MinConfidence: w.MinConfidence}
		}
	}
	return ClassTable{weapons: m}
}

func (t ClassTable) Weapon(classID int) (WeaponClass, bool) {
	w, ok := t.weapons[classID]
	return w, ok
}

func (t ClassTable) Len() int {
	return len(t.weapons)
}

// ClassName returns the COCO name of a class id
func ClassName(classID int) string {
	if classID >= 0 && classID < len(COCOClasses) {
		return COCOClasses[classID]
	}
	return fmt.Sprintf("class_%d", classID)
}

// COCOClasses contains the 80 COCO class names
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}
