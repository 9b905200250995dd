package main

var AboutMe = `I love building software that’s both useful and fun, and I’m always curious about how things work behind the scenes.
	Most of my projects start with a simple idea and turn into a chance to learn something new, whether it’s exploring a
	different language, experimenting with tools, or solving tricky problems. Say hi to the little assistant in the corner
	if you want a quick pointer around the site.`
