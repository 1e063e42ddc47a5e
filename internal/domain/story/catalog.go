package story

// Voice is a narrator voice offered by the speech backend.
type Voice struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// DefaultVoice is used when no voice was picked or the account may not choose.
const DefaultVoice = "Kore"

var Voices = []Voice{
	{ID: "Kore", Description: "Женский (спокойный)"},
	{ID: "Zephyr", Description: "Женский (дружелюбный)"},
	{ID: "Puck", Description: "Мужской (веселый)"},
	{ID: "Charon", Description: "Мужской (глубокий)"},
	{ID: "Fenrir", Description: "Мужской (эпичный)"},
}

// IsKnownVoice reports whether id is in the voice catalogue.
func IsKnownVoice(id string) bool {
	for _, v := range Voices {
		if v.ID == id {
			return true
		}
	}
	return false
}

// Template is a story theme with a suggested companion and setting.
type Template struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Companion   string `json:"character"`
	Setting     string `json:"location"`
}

const CustomTemplateID = "custom"

var Templates = []Template{
	{ID: CustomTemplateID, Title: "Своя история", Description: "Полностью ваша история."},
	{ID: "forest-adventure", Title: "Приключение в лесу", Description: "Сказка о дружбе и смелости в волшебном лесу.", Companion: "любопытный лисенок", Setting: "Шепчущий лес"},
	{ID: "space-journey", Title: "Космическое путешествие", Description: "История о полете к далеким звездам и новых открытиях.", Companion: "отважный робот-астронавт", Setting: "туманность Ориона"},
	{ID: "underwater-world", Title: "Тайны подводного мира", Description: "Погружение в красочный мир коралловых рифов и его обитателей.", Companion: "веселый дельфин", Setting: "Коралловый город"},
	{ID: "magic-castle", Title: "Загадка волшебного замка", Description: "Сказка о тайнах старинного замка, где живет магия.", Companion: "маленький призрак", Setting: "замок Спящей Луны"},
	{ID: "dragon-friend", Title: "Дружба с драконом", Description: "История о том, как ребенок подружился с настоящим драконом.", Companion: "добрый огнедышащий дракончик", Setting: "Драконьи горы"},
	{ID: "detective-story", Title: "Маленький детектив", Description: "Запутанная история, где главный герой расследует пропажу сладостей.", Companion: "проницательный хомяк-сыщик", Setting: "город Сладкоежек"},
	{ID: "time-travel", Title: "Путешествие во времени", Description: "Приключение с машиной времени, динозаврами и рыцарями.", Companion: "мудрая сова-профессор", Setting: "эпоха динозавров"},
	{ID: "circus-dream", Title: "Цирковая мечта", Description: "История о том, как мечта выступить на арене цирка стала реальностью.", Companion: "талантливый слоненок-жонглер", Setting: "цирк-шапито \"Фантазия\""},
	{ID: "candy-kingdom", Title: "Королевство сладостей", Description: "Сладкая сказка о приключениях в стране из шоколада и мармелада.", Companion: "зефирный человечек", Setting: "Шоколадная река"},
	{ID: "talking-animals", Title: "Говорящие животные", Description: "История о ферме, где все животные умеют разговаривать.", Companion: "хитрый говорящий кот", Setting: "ферма \"Солнечный луг\""},
}

// FindTemplate looks a template up by id.
func FindTemplate(id string) (Template, bool) {
	for _, t := range Templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}
