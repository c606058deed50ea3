package cleaner

import "math/rand"

// intros rotate at the top of every cleaned repost.
var intros = []string{
	"🧼 Scrubbed the tracking grime off this link",
	"🪲 Sprayed this message for nosy bugs",
	"🫧 Ran that link through a 90°C wash cycle",
	"🧹 Swept out the marketing crumbs",
	"🐛 Combed the tracking lice out of this URL",
	"🗑️ Tossed the little tracking worms in the bin",
	"🦠 Disinfected this message of marketing dirt",
	"🥛 Soaked this link in baking soda overnight",
	"✨ De-rusted and polished it to a shine",
	"🪱 Rid this link of its tracking parasites",
}

// pickIntro returns a random intro line.
func pickIntro() string {
	return intros[rand.Intn(len(intros))]
}
