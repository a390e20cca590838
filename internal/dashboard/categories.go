package dashboard

// OtherCategory labels category ids missing from Categories.
const OtherCategory = "Other"

// Categories maps YouTube video category ids to display names.
var Categories = map[string]string{
	"1":  "Film & Animation",
	"2":  "Autos & Vehicles",
	"10": "Music",
	"17": "Sports",
	"20": "Gaming",
	"22": "People & Blogs",
	"23": "Comedy",
	"24": "Entertainment",
	"25": "News & Politics",
	"26": "How-to & Style",
	"27": "Education",
	"28": "Science & Tech",
}

// CategoryName resolves a category id, falling back to OtherCategory.
func CategoryName(id *string) string {
	if id == nil {
		return OtherCategory
	}
	if name, ok := Categories[*id]; ok {
		return name
	}
	return OtherCategory
}
